package main

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"os"
	"os/signal"

	ftpserver "github.com/fclairamb/ftpserverlib"
	gologrus "github.com/fclairamb/go-log/logrus"
	"github.com/gorilla/handlers"
	"github.com/spf13/afero"
	"golang.org/x/net/webdav"

	"github.com/aligator/sdfat"
)

// davFS exposes an afero.Fs as webdav.FileSystem.
type davFS struct {
	afero.Fs
}

func (f *davFS) Mkdir(ctx context.Context, name string, perm os.FileMode) error {
	return f.Fs.Mkdir(name, perm)
}

func (f *davFS) OpenFile(ctx context.Context, name string, flag int, perm os.FileMode) (webdav.File, error) {
	return f.Fs.OpenFile(name, flag, perm)
}

func (f *davFS) RemoveAll(ctx context.Context, name string) error {
	return f.Fs.RemoveAll(name)
}

func (f *davFS) Rename(ctx context.Context, oldName, newName string) error {
	return f.Fs.Rename(oldName, newName)
}

func (f *davFS) Stat(ctx context.Context, name string) (os.FileInfo, error) {
	return f.Fs.Stat(name)
}

// onInterrupt calls stop once on SIGINT.
func onInterrupt(stop func()) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		stop()
	}()
}

type serveWebDAVCommand struct {
	Listen string `short:"l" long:"listen" description:"Listen address" default:"127.0.0.1:7080"`
	Prefix string `long:"prefix" description:"URL prefix of the share" default:"/"`
}

func (cmd *serveWebDAVCommand) Execute(args []string) error {
	c, err := openCard()
	if err != nil {
		return err
	}
	defer c.Close()

	h := &webdav.Handler{
		Prefix:     cmd.Prefix,
		FileSystem: &davFS{Fs: sdfat.NewFs(c.vol)},
		LockSystem: webdav.NewMemLS(),
		Logger: func(r *http.Request, err error) {
			if err != nil {
				logger.WithError(err).WithField("path", r.URL.Path).Debug("WebDAV request failed")
			}
		},
	}

	server := &http.Server{
		Addr:    cmd.Listen,
		Handler: handlers.LoggingHandler(logger.Writer(), h),
	}
	onInterrupt(func() {
		server.Close()
	})

	logger.WithField("addr", cmd.Listen).Info("Serving WebDAV")
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ftpDriver serves the same read-only file system to every user.
type ftpDriver struct {
	settings *ftpserver.Settings
	fs       afero.Fs
	user     string
	pass     string
}

func (d *ftpDriver) GetSettings() (*ftpserver.Settings, error) {
	return d.settings, nil
}

func (d *ftpDriver) ClientConnected(cc ftpserver.ClientContext) (string, error) {
	return "sdfat read-only FTP server", nil
}

func (d *ftpDriver) ClientDisconnected(cc ftpserver.ClientContext) {}

func (d *ftpDriver) AuthUser(cc ftpserver.ClientContext, user, pass string) (ftpserver.ClientDriver, error) {
	if d.user != "" && (user != d.user || pass != d.pass) {
		return nil, errors.New("invalid credentials")
	}
	return d.fs, nil
}

func (d *ftpDriver) GetTLSConfig() (*tls.Config, error) {
	return nil, errors.New("TLS is not configured")
}

type serveFTPCommand struct {
	Listen   string `short:"l" long:"listen" description:"Listen address" default:"127.0.0.1:7021"`
	User     string `long:"user" description:"Required user name, anyone may log in if empty"`
	Password string `long:"password" description:"Password of --user"`
}

func (cmd *serveFTPCommand) Execute(args []string) error {
	c, err := openCard()
	if err != nil {
		return err
	}
	defer c.Close()

	srv := ftpserver.NewFtpServer(&ftpDriver{
		settings: &ftpserver.Settings{
			ListenAddr: cmd.Listen,
		},
		fs:   sdfat.NewFs(c.vol),
		user: cmd.User,
		pass: cmd.Password,
	})
	srv.Logger = gologrus.NewWrap(logger)

	onInterrupt(func() {
		srv.Stop()
	})

	logger.WithField("addr", cmd.Listen).Info("Serving FTP")
	return srv.ListenAndServe()
}
