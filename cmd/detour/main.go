package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/detour-proxy/detour/cmd"
	"github.com/detour-proxy/detour/frontend"
	"github.com/detour-proxy/detour/upstream"
)

func main() {
	config := cmd.GetConfigFromEnvironment()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	server := &frontend.Server{
		BindAddress:         config.BindAddress(),
		ProxyProtocol:       config.ProxyProtocol,
		MaxSessions:         config.MaxSessions,
		AcceptQueueTimeout:  config.AcceptQueueTimeout,
		ShutdownGracePeriod: config.ShutdownGracePeriod,
		Dialer: &upstream.Dialer{
			ConnectTimeout: config.ConnectTimeout,
		},
		HeaderReadTimeout:   config.HeaderReadTimeout,
		UpstreamReadTimeout: config.UpstreamReadTimeout,
		MaxHeaderBytes:      config.MaxHeaderBytes,
		MaxHeaderLineBytes:  config.MaxHeaderLineBytes,
		DeniedMethods:       config.DenyMethods,
		Logger:              logger,
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-signals
		logger.Printf("Received %s, draining sessions", sig)
		server.Stop()
	}()

	if err := server.Run(); err != nil {
		logger.Fatalln(err)
	}
}
