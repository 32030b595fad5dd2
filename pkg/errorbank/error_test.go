package errorbank

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"google.golang.org/grpc/codes"
)

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		err      *AppError
		wantHTTP int
		wantGRPC codes.Code
	}{
		{BadRequest("bad"), http.StatusBadRequest, codes.InvalidArgument},
		{NotFound("missing"), http.StatusNotFound, codes.NotFound},
		{Conflict("dup"), http.StatusConflict, codes.AlreadyExists},
		{Unavailable("db down"), http.StatusServiceUnavailable, codes.Unavailable},
		{New(Kind("weird"), ""), http.StatusInternalServerError, codes.Internal},
	}
	for _, tt := range tests {
		if got := tt.err.StatusCode(); got != tt.wantHTTP {
			t.Errorf("%s: StatusCode = %d, want %d", tt.err.Kind(), got, tt.wantHTTP)
		}
		if got := tt.err.GRPCCode(); got != tt.wantGRPC {
			t.Errorf("%s: GRPCCode = %v, want %v", tt.err.Kind(), got, tt.wantGRPC)
		}
	}
}

func TestFromAndIs(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	wrapped := fmt.Errorf("chunk 1: %w", Unavailable("acquire connection", WithCause(cause)))

	if !Is(wrapped, KindUnavailable) {
		t.Fatalf("Is(unavailable) = false")
	}
	if !errors.Is(wrapped, cause) {
		t.Fatalf("cause lost through wrapping")
	}
	if got := From(wrapped).Kind(); got != KindUnavailable {
		t.Fatalf("From kind = %s", got)
	}
	if got := From(cause).Kind(); got != KindInternal {
		t.Fatalf("plain error kind = %s, want internal", got)
	}
	if From(nil) != nil {
		t.Fatalf("From(nil) should be nil")
	}
}
