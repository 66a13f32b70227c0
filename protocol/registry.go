// Package protocol gives protocol modules (protocol/mysql and any
// embedder-supplied equivalent) a place to register themselves with a
// DCB manager by name, without each module reaching into package dcb
// directly at its call site.
package protocol

import "github.com/skysql-gw/dcbcore/dcb"

// Registry is a thin named wrapper around a Manager's protocol table.
type Registry struct {
	mgr *dcb.Manager
}

// NewRegistry binds a Registry to mgr.
func NewRegistry(mgr *dcb.Manager) *Registry {
	return &Registry{mgr: mgr}
}

// Register installs ops under name, resolved later by dcb.Manager.Connect
// or dcb.Manager.Listen. DCBs produced by dcb.Manager.Accept take their
// listener's ops instead of resolving a name.
func (r *Registry) Register(name string, ops dcb.ProtocolOps) {
	r.mgr.RegisterProtocol(name, ops)
}
