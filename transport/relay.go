package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/samparke/cross-chain-rebase-token/bridge"
)

const (
	relayIssuer      = "rbt-relay"
	relayTokenTTL    = 2 * time.Minute
	maxPayloadBytes  = 1 << 16
	originClaim      = "origin"
	feeHeader        = "X-Relay-Fee"
	relayMessagePath = "/relay/v1/messages"
)

// Client is the outbound HTTP relay: it posts RLP message payloads to peer
// domains' relay endpoints, authenticated with an HMAC-signed JWT carrying
// the origin domain.
type Client struct {
	origin uint64
	peers  map[uint64]string
	secret []byte
	// fee offered per message, in the relay's native fee unit.
	fee        uint64
	httpClient *http.Client
}

// NewClient builds an outbound relay for the given origin domain. peers maps
// destination domain IDs to relay base URLs.
func NewClient(origin uint64, peers map[uint64]string, secret []byte, fee uint64) *Client {
	cloned := make(map[uint64]string, len(peers))
	for domain, url := range peers {
		cloned[domain] = url
	}
	return &Client{
		origin:     origin,
		peers:      cloned,
		secret:     secret,
		fee:        fee,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) token() (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":       relayIssuer,
		originClaim: strconv.FormatUint(c.origin, 10),
		"iat":       now.Unix(),
		"exp":       now.Add(relayTokenTTL).Unix(),
		"jti":       uuid.NewString(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// Send posts the payload to the destination's relay endpoint and returns the
// delivery handle issued by the remote side.
func (c *Client) Send(ctx context.Context, destDomain uint64, payload []byte) (string, error) {
	base, ok := c.peers[destDomain]
	if !ok {
		return "", ErrTransportUnavailable
	}
	signed, err := c.token()
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+relayMessagePath, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Authorization", "Bearer "+signed)
	req.Header.Set(feeHeader, strconv.FormatUint(c.fee, 10))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransportUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusPaymentRequired:
		return "", ErrInsufficientFee
	default:
		return "", fmt.Errorf("%w: relay returned %d", ErrTransportUnavailable, resp.StatusCode)
	}

	var result struct {
		Handle string `json:"handle"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.Handle, nil
}

// ServerConfig parameterises the inbound relay endpoint.
type ServerConfig struct {
	Secret []byte
	// MinFee is the smallest fee accepted per message; lower offers are
	// refused with 402 before the payload is looked at.
	MinFee uint64
}

// NewHandler builds the inbound relay router. Authenticated payloads are
// handed to the receiver; a message the bridge reports as already applied is
// still acknowledged so the sending relay stops retrying.
func NewHandler(receiver Receiver, cfg ServerConfig) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RealIP)
	router.Post(relayMessagePath, func(w http.ResponseWriter, r *http.Request) {
		origin, ok := authenticate(r, cfg.Secret)
		if !ok {
			http.Error(w, "invalid relay token", http.StatusUnauthorized)
			return
		}
		if fee := parseFee(r.Header.Get(feeHeader)); fee < cfg.MinFee {
			http.Error(w, "fee below relay price", http.StatusPaymentRequired)
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
		if err != nil || len(payload) == 0 {
			http.Error(w, "unreadable payload", http.StatusBadRequest)
			return
		}

		switch err := receiver.HandleDelivery(payload, origin); {
		case err == nil:
		case isAlreadyApplied(err):
			// Redelivery of an applied message: acknowledge it.
		default:
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"handle": uuid.NewString()})
	})
	return router
}

func authenticate(r *http.Request, secret []byte) (uint64, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return 0, false
	}
	parsed, err := jwt.Parse(header[len(prefix):], func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	}, jwt.WithIssuer(relayIssuer), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return 0, false
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return 0, false
	}
	raw, ok := claims[originClaim].(string)
	if !ok {
		return 0, false
	}
	origin, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return origin, true
}

func parseFee(raw string) uint64 {
	fee, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0
	}
	return fee
}

func isAlreadyApplied(err error) bool {
	return errors.Is(err, bridge.ErrAlreadyProcessed)
}
