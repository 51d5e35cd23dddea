package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/ariefcatur/storefront-orders/internal/orders"
)

// Identity headers set by the gateway in front of this service.
const (
	HeaderUserID    = "X-User-Id"
	HeaderUserRole  = "X-User-Role"
	HeaderUserName  = "X-User-Name"
	HeaderUserEmail = "X-User-Email"
)

type requesterKey struct{}

// WithRequester resolves the caller from the identity headers. Requests
// without a user id carry the anonymous requester.
func WithRequester(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := orders.Requester{UserID: strings.TrimSpace(r.Header.Get(HeaderUserID))}
		if req.UserID != "" {
			req.Role = orders.RoleUser
			if orders.Role(strings.ToUpper(strings.TrimSpace(r.Header.Get(HeaderUserRole)))) == orders.RoleAdmin {
				req.Role = orders.RoleAdmin
			}
			req.Name = strings.TrimSpace(r.Header.Get(HeaderUserName))
			req.Email = strings.TrimSpace(r.Header.Get(HeaderUserEmail))
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requesterKey{}, req)))
	})
}

func RequesterFrom(ctx context.Context) orders.Requester {
	req, _ := ctx.Value(requesterKey{}).(orders.Requester)
	return req
}
