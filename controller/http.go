package controller

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/meshcore/engine/address"
	"github.com/meshcore/engine/httpapi"
)

// resultStatus maps a Result to the HTTP status callers should use.
func resultStatus(r Result) int {
	switch r {
	case ResultOK, ResultOKButNotNewer:
		return http.StatusOK
	case ResultObjectNotFound:
		return http.StatusNotFound
	case ResultAccessDenied:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func resultErr(r Result) error {
	if r == ResultOK || r == ResultOKButNotNewer {
		return nil
	}
	return httpapi.Error(resultStatus(r), r.String(), nil)
}

// apiVersion is reported by GET /controller so a client can detect a
// protocol-incompatible controller before issuing any other request.
const apiVersion = 1

// Handler returns the controller's HTTP JSON surface: a status probe at
// /controller, and network/member CRUD under
// /controller/network/{id}[/member/{addr}], mounted at the given prefix.
func (c *Controller) Handler(prefix string) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(prefix, httpapi.JSONHandlerFunc(c.serveStatus))
	mux.Handle(prefix+"/network/", httpapi.JSONHandlerFunc(func(r *http.Request) (int, interface{}, error) {
		return c.serveNetworkPath(prefix, r)
	}))
	mux.Handle(prefix+"/network", httpapi.JSONHandlerFunc(c.serveNetworkCollection))
	return mux
}

func (c *Controller) serveStatus(r *http.Request) (int, interface{}, error) {
	if r.Method != http.MethodGet {
		return 0, nil, httpapi.Error(http.StatusMethodNotAllowed, "method not allowed", nil)
	}
	return http.StatusOK, map[string]interface{}{
		"controller": true,
		"apiVersion": apiVersion,
		"clock":      c.now(),
	}, nil
}

func (c *Controller) serveNetworkCollection(r *http.Request) (int, interface{}, error) {
	if r.Method != http.MethodGet {
		return 0, nil, httpapi.Error(http.StatusMethodNotAllowed, "method not allowed", nil)
	}
	var ids []string
	c.networks.Range(func(id uint64, _ *network) {
		ids = append(ids, formatNetworkID(id))
	})
	return http.StatusOK, ids, nil
}

// serveNetworkPath handles {mount}/network/{id} and
// {mount}/network/{id}/member/{addr}. A path segment of all
// underscores in place of {id}'s low 24 bits mints a fresh network id.
func (c *Controller) serveNetworkPath(mount string, r *http.Request) (int, interface{}, error) {
	rest := strings.TrimPrefix(r.URL.Path, mount+"/network/")
	parts := strings.Split(rest, "/")
	if len(parts) == 0 || parts[0] == "" {
		return 0, nil, httpapi.Error(http.StatusBadRequest, "missing network id", nil)
	}
	idStr := parts[0]

	if strings.HasSuffix(idStr, "______") && r.Method == http.MethodPost {
		if len(idStr) != 16 {
			return 0, nil, httpapi.Error(http.StatusBadRequest, "malformed network id", nil)
		}
		prefix, err := strconv.ParseUint(idStr[:10], 16, 64)
		if err != nil {
			return 0, nil, httpapi.Error(http.StatusBadRequest, "malformed network id prefix", err)
		}
		if prefix != uint64(c.self.Address()) {
			return 0, nil, httpapi.Error(http.StatusForbidden, "network id prefix must equal the controller's own address", nil)
		}
		id, res := c.MintNetwork()
		if res != ResultOK {
			return resultStatus(res), nil, resultErr(res)
		}
		return http.StatusOK, map[string]string{"id": formatNetworkID(id)}, nil
	}

	networkID, err := strconv.ParseUint(idStr, 16, 64)
	if err != nil {
		return 0, nil, httpapi.Error(http.StatusBadRequest, "malformed network id", err)
	}

	if len(parts) >= 3 && parts[1] == "member" {
		nodeAddr, err := address.ParseString(parts[2])
		if err != nil {
			return 0, nil, httpapi.Error(http.StatusBadRequest, "malformed member address", err)
		}
		return c.serveMember(r, networkID, nodeAddr)
	}
	return c.serveNetwork(r, networkID)
}

func (c *Controller) serveNetwork(r *http.Request, networkID uint64) (int, interface{}, error) {
	switch r.Method {
	case http.MethodGet:
		n, ok := c.networks.GetOk(networkID)
		if !ok {
			return resultStatus(ResultObjectNotFound), nil, resultErr(ResultObjectNotFound)
		}
		n.mu.Lock()
		rec := n.rec
		n.mu.Unlock()
		return http.StatusOK, rec, nil
	case http.MethodPost:
		var u NetworkUpdate
		if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
			return 0, nil, httpapi.Error(http.StatusBadRequest, "malformed body", err)
		}
		res, rec := c.UpsertNetwork(networkID, u)
		return resultStatus(res), rec, resultErr(res)
	case http.MethodDelete:
		res := c.DeleteNetwork(networkID)
		return resultStatus(res), nil, resultErr(res)
	default:
		return 0, nil, httpapi.Error(http.StatusMethodNotAllowed, "method not allowed", nil)
	}
}

func (c *Controller) serveMember(r *http.Request, networkID uint64, nodeID address.Address) (int, interface{}, error) {
	switch r.Method {
	case http.MethodGet:
		n, ok := c.networks.GetOk(networkID)
		if !ok {
			return resultStatus(ResultObjectNotFound), nil, resultErr(ResultObjectNotFound)
		}
		n.mu.Lock()
		m, ok := n.members[nodeID]
		var rec MemberRecord
		if ok {
			rec = *m
		}
		n.mu.Unlock()
		if !ok {
			return resultStatus(ResultObjectNotFound), nil, resultErr(ResultObjectNotFound)
		}
		return http.StatusOK, rec, nil
	case http.MethodPost:
		var u MemberUpdate
		if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
			return 0, nil, httpapi.Error(http.StatusBadRequest, "malformed body", err)
		}
		res, rec := c.UpsertMember(networkID, nodeID, u)
		return resultStatus(res), rec, resultErr(res)
	case http.MethodDelete:
		res := c.DeleteMember(networkID, nodeID)
		return resultStatus(res), nil, resultErr(res)
	default:
		return 0, nil, httpapi.Error(http.StatusMethodNotAllowed, "method not allowed", nil)
	}
}

func formatNetworkID(id uint64) string {
	const hexdigits = "0123456789abcdef"
	b := make([]byte, 16)
	for i := 15; i >= 0; i-- {
		b[i] = hexdigits[id&0xf]
		id >>= 4
	}
	return string(b)
}
