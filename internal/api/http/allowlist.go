package http

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	apperrors "github.com/spec-kit/task-management/pkg/util/errorutil"
)

// InternalOnly restricts a route group to callers inside the given networks.
func InternalOnly(cidrs []string, logger *zap.Logger) (fiber.Handler, error) {
	prefixes := make([]netip.Prefix, 0, len(cidrs))
	for _, raw := range cidrs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		prefix, err := netip.ParsePrefix(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid internal CIDR %q: %w", raw, err)
		}
		prefixes = append(prefixes, prefix.Masked())
	}

	return func(c *fiber.Ctx) error {
		addr, err := netip.ParseAddr(c.IP())
		if err == nil {
			addr = addr.Unmap()
			for _, prefix := range prefixes {
				if prefix.Contains(addr) {
					return c.Next()
				}
			}
		}
		logger.Warn("internal endpoint denied", zap.String("ip", c.IP()), zap.String("path", c.Path()))
		return apperrors.NewForbidden("internal endpoint")
	}, nil
}
