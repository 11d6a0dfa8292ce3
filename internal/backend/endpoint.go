package backend

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Op names a logical operation; each maps to an ordered list of endpoints.
type Op string

const (
	OpListPending  Op = "list_pending"
	OpListApproved Op = "list_approved"
	OpListRejected Op = "list_rejected"
	OpGetByID      Op = "get_by_id"
	OpCreate       Op = "create"
	OpUpdate       Op = "update"
	OpSetStatus    Op = "set_status"
	OpResubmit     Op = "resubmit"
)

// Ops lists every logical operation in a stable order.
func Ops() []Op {
	return []Op{OpListPending, OpListApproved, OpListRejected, OpGetByID, OpCreate, OpUpdate, OpSetStatus, OpResubmit}
}

// Endpoint is one concrete variant of a logical operation. Path may carry a
// query string and an {id} placeholder.
type Endpoint struct {
	Name   string `toml:"name"`
	Method string `toml:"method"`
	Path   string `toml:"path"`
}

// Label identifies the endpoint in logs and error reports.
func (e Endpoint) Label() string {
	if e.Name != "" {
		return e.Name
	}
	return e.method() + " " + e.Path
}

func (e Endpoint) method() string {
	if e.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(e.Method)
}

// Target resolves the path against id and returns it as a relative URL.
func (e Endpoint) Target(id string) (*url.URL, error) {
	path := e.Path
	if strings.Contains(path, "{id}") {
		if strings.TrimSpace(id) == "" {
			return nil, fmt.Errorf("endpoint %s needs an id", e.Label())
		}
		path = strings.ReplaceAll(path, "{id}", url.PathEscape(id))
	}
	rel, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint path %q: %w", e.Path, err)
	}
	return rel, nil
}

// Catalog maps each logical operation to its ordered endpoint candidates.
type Catalog map[Op][]Endpoint

// DefaultCatalog lists the variants deployments are known to expose, newest
// first.
func DefaultCatalog() Catalog {
	list := func(status string) []Endpoint {
		return []Endpoint{
			{Name: "v2-" + status, Method: http.MethodGet, Path: "/api/v2/news?status=" + status},
			{Name: "legacy-" + status, Method: http.MethodGet, Path: "/api/news/" + status},
			{Name: "admin-" + status, Method: http.MethodGet, Path: "/api/admin/news/" + status},
		}
	}
	return Catalog{
		OpListPending:  list("pending"),
		OpListApproved: list("approved"),
		OpListRejected: list("rejected"),
		OpGetByID: {
			{Name: "v2-get", Method: http.MethodGet, Path: "/api/v2/news/{id}"},
			{Name: "legacy-get", Method: http.MethodGet, Path: "/api/news/{id}"},
		},
		OpCreate: {
			{Name: "v2-create", Method: http.MethodPost, Path: "/api/v2/news"},
			{Name: "legacy-create", Method: http.MethodPost, Path: "/api/news"},
			{Name: "legacy-create-alt", Method: http.MethodPost, Path: "/api/news/create"},
		},
		OpUpdate: {
			{Name: "v2-update", Method: http.MethodPut, Path: "/api/v2/news/{id}"},
			{Name: "legacy-update", Method: http.MethodPatch, Path: "/api/news/{id}"},
			{Name: "legacy-update-alt", Method: http.MethodPost, Path: "/api/news/{id}/update"},
		},
		OpSetStatus: {
			{Name: "v2-status", Method: http.MethodPatch, Path: "/api/v2/news/{id}/status"},
			{Name: "legacy-status", Method: http.MethodPut, Path: "/api/news/{id}/status"},
			{Name: "admin-review", Method: http.MethodPost, Path: "/api/admin/news/{id}/review"},
		},
		OpResubmit: {
			{Name: "v2-resubmit", Method: http.MethodPost, Path: "/api/v2/news/{id}/resubmit"},
			{Name: "legacy-resubmit", Method: http.MethodPatch, Path: "/api/news/{id}/resubmit"},
			{Name: "legacy-status", Method: http.MethodPut, Path: "/api/news/{id}/status"},
		},
	}
}

// Candidates returns a copy of the endpoints for op.
func (c Catalog) Candidates(op Op) []Endpoint {
	return append([]Endpoint(nil), c[op]...)
}

// Merge returns a catalog where every op present in overrides replaces the
// receiver's list wholesale.
func (c Catalog) Merge(overrides Catalog) Catalog {
	out := make(Catalog, len(c))
	for op, eps := range c {
		out[op] = append([]Endpoint(nil), eps...)
	}
	for op, eps := range overrides {
		if len(eps) == 0 {
			continue
		}
		out[op] = append([]Endpoint(nil), eps...)
	}
	return out
}

// Validate checks that every op has at least one endpoint with a path and a
// known method.
func (c Catalog) Validate() error {
	for _, op := range Ops() {
		eps := c[op]
		if len(eps) == 0 {
			return fmt.Errorf("no endpoints configured for %s", op)
		}
		for i, ep := range eps {
			if strings.TrimSpace(ep.Path) == "" {
				return fmt.Errorf("%s endpoint %d has no path", op, i)
			}
			switch ep.method() {
			case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch:
			default:
				return fmt.Errorf("%s endpoint %s has unsupported method %q", op, ep.Label(), ep.Method)
			}
		}
	}
	return nil
}
