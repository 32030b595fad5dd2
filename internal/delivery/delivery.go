// Package delivery hands finished ledger files to the accounting side.
package delivery

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"path/filepath"

	"github.com/pkg/sftp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/Additional-Code/salesledger/internal/config"
	"github.com/Additional-Code/salesledger/pkg/errorbank"
)

var deliveryTracer = otel.Tracer("github.com/Additional-Code/salesledger/delivery")

// Deliverer ships a closed ledger file and returns where it landed.
type Deliverer interface {
	Deliver(ctx context.Context, localPath string) (string, error)
}

// Module provides the configured Deliverer.
var Module = fx.Provide(New)

// New returns an SFTP uploader when enabled, otherwise a deliverer that
// leaves the file in place.
func New(cfg config.Config, logger *zap.Logger) Deliverer {
	if !cfg.Delivery.SFTPEnabled {
		logger.Info("sftp delivery disabled; ledger files stay local")
		return localDeliverer{}
	}
	return &SFTPUploader{cfg: cfg.Delivery, logger: logger}
}

type localDeliverer struct{}

func (localDeliverer) Deliver(_ context.Context, localPath string) (string, error) {
	return localPath, nil
}

// SFTPUploader copies ledger files to a remote directory over SFTP. The
// server key must be present in the known_hosts file.
type SFTPUploader struct {
	cfg    config.Delivery
	logger *zap.Logger
}

// Deliver uploads localPath into the remote directory under its base name.
func (u *SFTPUploader) Deliver(ctx context.Context, localPath string) (string, error) {
	remote := path.Join(u.cfg.SFTPRemoteDir, filepath.Base(localPath))

	ctx, span := deliveryTracer.Start(ctx, "SFTPUploader.Deliver", trace.WithAttributes(
		attribute.String("delivery.host", u.cfg.SFTPAddr),
		attribute.String("delivery.remote_path", remote),
	))
	defer span.End()

	if err := u.upload(ctx, localPath, remote); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upload failed")
		return "", errorbank.Unavailable("ledger upload failed", errorbank.WithCause(err), errorbank.WithDetail("remote_path", remote))
	}

	u.logger.Info("ledger file delivered", zap.String("local_path", localPath), zap.String("remote_path", remote))
	return remote, nil
}

func (u *SFTPUploader) upload(ctx context.Context, localPath, remote string) error {
	hostKeys, err := knownhosts.New(u.cfg.KnownHostsFile)
	if err != nil {
		return fmt.Errorf("load known hosts: %w", err)
	}

	dialer := net.Dialer{Timeout: u.cfg.Timeout}
	netConn, err := dialer.DialContext(ctx, "tcp", u.cfg.SFTPAddr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", u.cfg.SFTPAddr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(netConn, u.cfg.SFTPAddr, &ssh.ClientConfig{
		User:            u.cfg.SFTPUser,
		Auth:            []ssh.AuthMethod{ssh.Password(u.cfg.SFTPPassword)},
		HostKeyCallback: hostKeys,
		Timeout:         u.cfg.Timeout,
	})
	if err != nil {
		netConn.Close()
		return fmt.Errorf("ssh handshake: %w", err)
	}
	sshClient := ssh.NewClient(sshConn, chans, reqs)
	defer sshClient.Close()

	client, err := sftp.NewClient(sshClient)
	if err != nil {
		return fmt.Errorf("open sftp session: %w", err)
	}
	defer client.Close()

	src, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := client.Create(remote)
	if err != nil {
		return fmt.Errorf("create %s: %w", remote, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("copy to %s: %w", remote, err)
	}
	return dst.Close()
}
