package utils

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const (
	serverReadTimeout  = 60 * time.Second
	serverWriteTimeout = 60 * time.Second
	shutdownGrace      = 30 * time.Second

	// A successor spawned on SIGUSR2 inherits the listening socket as
	// fd 3 and finds this variable set in its environment.
	inheritEnvKey = "LISTENER_INHERITED"
	inheritedFd   = 3
)

// GraceServer serves HTTP on addr and keeps the listening socket alive
// across binary upgrades. SIGTERM and SIGINT drain in-flight requests
// and exit; SIGUSR2 forks a replacement process on the same socket and
// then drains the old one.
func GraceServer(addr string, handler http.Handler) error {
	srv := &gracefulServer{
		http: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  serverReadTimeout,
			WriteTimeout: serverWriteTimeout,
		},
		drained: make(chan struct{}),
	}
	return srv.run()
}

type gracefulServer struct {
	http     *http.Server
	listener net.Listener
	drained  chan struct{}
}

func (s *gracefulServer) run() error {
	ln, err := s.listen()
	if err != nil {
		return err
	}
	s.listener = ln

	go s.watchSignals()

	if err := s.http.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	<-s.drained
	return nil
}

func (s *gracefulServer) listen() (net.Listener, error) {
	if os.Getenv(inheritEnvKey) != "" {
		ln, err := net.FileListener(os.NewFile(inheritedFd, "listener"))
		if err != nil {
			return nil, fmt.Errorf("inherit listener: %w", err)
		}
		return ln, nil
	}
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", s.http.Addr, err)
	}
	return ln, nil
}

func (s *gracefulServer) watchSignals() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGTERM, syscall.SIGINT, syscall.SIGUSR2)

	for sig := range sigs {
		switch sig {
		case syscall.SIGTERM, syscall.SIGINT:
			Sugar.Infow("shutting down", "signal", sig.String())
			s.drain()
			return
		case syscall.SIGUSR2:
			pid, err := s.forkSuccessor()
			if err != nil {
				Sugar.Errorw("upgrade failed, old process keeps serving", "error", err)
				continue
			}
			Sugar.Infow("successor started, draining old process", "pid", pid)
			s.drain()
			return
		}
	}
}

func (s *gracefulServer) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := s.http.Shutdown(ctx); err != nil {
		Sugar.Errorw("shutdown", "error", err)
	}
	close(s.drained)
}

func (s *gracefulServer) forkSuccessor() (int, error) {
	tcp, ok := s.listener.(*net.TCPListener)
	if !ok {
		return 0, fmt.Errorf("listener %T does not expose a file descriptor", s.listener)
	}
	file, err := tcp.File()
	if err != nil {
		return 0, fmt.Errorf("dup listener fd: %w", err)
	}

	env := make([]string, 0, len(os.Environ())+1)
	for _, e := range os.Environ() {
		if e != inheritEnvKey+"=1" {
			env = append(env, e)
		}
	}
	env = append(env, inheritEnvKey+"=1")

	pid, err := syscall.ForkExec(os.Args[0], os.Args, &syscall.ProcAttr{
		Env:   env,
		Files: []uintptr{os.Stdin.Fd(), os.Stdout.Fd(), os.Stderr.Fd(), file.Fd()},
	})
	if err != nil {
		return 0, fmt.Errorf("fork %s: %w", os.Args[0], err)
	}
	return pid, nil
}
