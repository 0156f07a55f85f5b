package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// DefaultURL is the LCM default provider: multicast confined to the local host.
	DefaultURL = "udpm://239.255.76.67:7667?ttl=0"
	// URLEnv overrides DefaultURL when set.
	URLEnv = "LCM_DEFAULT_URL"

	defaultGroup = "239.255.76.67"
	defaultPort  = 7667
)

var ErrUnknownScheme = errors.New("unknown provider scheme")

// DefaultProviderURL returns $LCM_DEFAULT_URL or DefaultURL.
func DefaultProviderURL() string {
	if v := os.Getenv(URLEnv); v != "" {
		return v
	}
	return DefaultURL
}

// Open creates the backend named by a provider URL:
//
//	memq://
//	udpm://239.255.76.67:7667?ttl=1
//	redis://localhost:6379/0
//	libp2p://?listen=/ip4/0.0.0.0/tcp/4001&bootstrap=<addr>&mdns=true&rendezvous=lcm&key=/path/key
//
// An empty URL selects DefaultProviderURL.
func Open(ctx context.Context, rawURL string, logger *zap.Logger) (PubSub, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rawURL == "" {
		rawURL = DefaultProviderURL()
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse provider url %q: %w", rawURL, err)
	}
	q := u.Query()

	switch u.Scheme {
	case "memq":
		return NewMemoryPubSub(), nil

	case "udpm":
		opts := UDPMOptions{
			Group:  net.ParseIP(defaultGroup),
			Port:   defaultPort,
			Logger: logger.Named("udpm"),
		}
		if h := u.Hostname(); h != "" {
			if opts.Group = net.ParseIP(h); opts.Group == nil {
				return nil, fmt.Errorf("udpm: invalid group %q", h)
			}
		}
		if p := u.Port(); p != "" {
			if opts.Port, err = strconv.Atoi(p); err != nil {
				return nil, fmt.Errorf("udpm: invalid port %q: %w", p, err)
			}
		}
		if ttl := q.Get("ttl"); ttl != "" {
			if opts.TTL, err = strconv.Atoi(ttl); err != nil || opts.TTL < 0 || opts.TTL > 255 {
				return nil, fmt.Errorf("udpm: invalid ttl %q", ttl)
			}
		}
		return NewUDPMPubSub(ctx, opts)

	case "redis", "rediss":
		opts, err := redis.ParseURL(rawURL)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		return NewRedisPubSub(ctx, opts, logger.Named("redis"))

	case "libp2p":
		opts := Libp2pOptions{
			ListenAddrs:     q["listen"],
			Bootstrap:       q["bootstrap"],
			Rendezvous:      q.Get("rendezvous"),
			IdentityKeyFile: q.Get("key"),
			Logger:          logger.Named("libp2p"),
		}
		if v := q.Get("mdns"); v != "" {
			if opts.EnableMDNS, err = strconv.ParseBool(v); err != nil {
				return nil, fmt.Errorf("libp2p: invalid mdns %q: %w", v, err)
			}
		}
		if opts.EnableMDNS && opts.Rendezvous == "" {
			opts.Rendezvous = "lcm"
		}
		return NewLibp2pPubSub(ctx, opts)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, u.Scheme)
}
