package controllers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// ApplyProxySettings makes fiber honor header for client addresses, but only
// on requests whose peer is listed in trustedProxies (IPs or CIDR ranges).
// With no trusted proxies the peer address is always used.
func ApplyProxySettings(cfg *fiber.Config, header string, trustedProxies []string) {
	proxies := make([]string, 0, len(trustedProxies))
	for _, p := range trustedProxies {
		if p = strings.TrimSpace(p); p != "" {
			proxies = append(proxies, p)
		}
	}
	if len(proxies) == 0 || strings.TrimSpace(header) == "" {
		cfg.ProxyHeader = ""
		return
	}
	cfg.ProxyHeader = header
	cfg.EnableTrustedProxyCheck = true
	cfg.TrustedProxies = proxies
	cfg.EnableIPValidation = true
}

// clientIP returns the address recorded on a webhook log
func clientIP(c *fiber.Ctx) string {
	return c.IP()
}
