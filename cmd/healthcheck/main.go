package main

import (
	"fmt"
	"net"
	"os"

	"github.com/detour-proxy/detour/cmd"
	"github.com/detour-proxy/detour/health"
)

func main() {
	config := cmd.GetConfigFromEnvironment()

	checker := health.Checker{
		Address:       net.JoinHostPort("127.0.0.1", config.Port),
		Timeout:       config.CheckTimeout,
		ProxyProtocol: config.ProxyProtocol,
	}

	status := checker.Check()
	fmt.Println(status)
	if !status.IsHealthy {
		os.Exit(1)
	}
}
