package strategy

import (
	"net/http"

	"catchy/internal/cache"
	"catchy/internal/exchange"
)

// RestName is the registry name of the REST strategy
const RestName = "rest"

// RestStrategy caches by HTTP method, URL and, for methods that carry one, the request body
type RestStrategy struct {
	base
}

// NewRestStrategy creates a REST strategy for the given hosts
func NewRestStrategy(hosts []string, store cache.Store) *RestStrategy {
	s := &RestStrategy{}
	s.base = newBase(RestName, hosts, store, restKey)
	return s
}

// CanHandle matches on host only
func (s *RestStrategy) CanHandle(r *http.Request) bool {
	return s.handlesHost(r)
}

// bodyMethods are the methods whose body takes part in the key
var bodyMethods = map[string]bool{
	http.MethodPost:  true,
	http.MethodPut:   true,
	http.MethodPatch: true,
}

// restKey is "METHOD URL BODY", with an empty body for methods outside bodyMethods
func restKey(ex *exchange.Exchange) ([]byte, error) {
	method := ex.Request.Method
	if method == "" {
		method = http.MethodGet
	}

	var body []byte
	if bodyMethods[method] {
		var err error
		body, err = ex.RequestBody()
		if err != nil {
			return nil, err
		}
	}

	url := ex.URL()
	key := make([]byte, 0, len(method)+len(url)+len(body)+2)
	key = append(key, method...)
	key = append(key, ' ')
	key = append(key, url...)
	key = append(key, ' ')
	key = append(key, body...)
	return key, nil
}

var _ Strategy = (*RestStrategy)(nil)
