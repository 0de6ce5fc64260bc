package chains

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	xerrors "HatterAgent/internal/errors"
)

// CodeUnknownChain marks a chain name that is not part of the relevant set.
const CodeUnknownChain xerrors.Code = "UNKNOWN_CHAIN"

func init() {
	xerrors.Register(CodeUnknownChain, xerrors.Attributes{
		Message:    "unknown chain",
		UserFacing: true,
		Severity:   xerrors.SeverityInfo,
	})
}

// Chain describes a reachable EVM network. Values are immutable once placed
// in a Registry.
type Chain struct {
	Name   string
	ID     uint64
	RPCURL string
}

// ChainID returns the numeric id as a big integer for signer construction.
func (c Chain) ChainID() *big.Int {
	return new(big.Int).SetUint64(c.ID)
}

// Registry resolves chain names to descriptors.
type Registry struct {
	byName map[string]Chain
	names  []string
}

// NewRegistry validates the provided descriptors and indexes them by name.
// Names must be unique, ids positive and unique, and every chain needs an
// RPC endpoint.
func NewRegistry(list ...Chain) (*Registry, error) {
	r := &Registry{byName: make(map[string]Chain, len(list))}
	ids := make(map[uint64]string, len(list))
	for _, c := range list {
		c.Name = strings.TrimSpace(c.Name)
		c.RPCURL = strings.TrimSpace(c.RPCURL)
		if c.Name == "" {
			return nil, xerrors.New(xerrors.CodeInvalidArgument, "chain name is required")
		}
		if _, dup := r.byName[c.Name]; dup {
			return nil, xerrors.New(xerrors.CodeConflict, fmt.Sprintf("duplicate chain name %q", c.Name))
		}
		if c.ID == 0 {
			return nil, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("chain %q must have a positive id", c.Name))
		}
		if other, dup := ids[c.ID]; dup {
			return nil, xerrors.New(xerrors.CodeConflict, fmt.Sprintf("chains %q and %q share id %d", other, c.Name, c.ID))
		}
		if c.RPCURL == "" {
			return nil, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("chain %q has no rpc endpoint", c.Name))
		}
		r.byName[c.Name] = c
		ids[c.ID] = c.Name
		r.names = append(r.names, c.Name)
	}
	sort.Strings(r.names)
	return r, nil
}

// Default returns a registry over the built-in catalog.
func Default() (*Registry, error) {
	return NewRegistry(Builtin()...)
}

// MustDefault is like Default but panics if the catalog is invalid.
func MustDefault() *Registry {
	r, err := Default()
	if err != nil {
		panic(err)
	}
	return r
}

// Resolve returns the descriptor registered under name. Lookup is case
// sensitive. Unknown names produce a CodeUnknownChain error listing the
// valid names.
func (r *Registry) Resolve(name string) (Chain, error) {
	if c, ok := r.byName[name]; ok {
		return c, nil
	}
	return Chain{}, UnknownChain(name,
		fmt.Sprintf("unknown chain %q; valid chains: %s", name, strings.Join(r.names, ", ")),
		r.names)
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Override replaces parts of a chain descriptor. Zero fields keep the
// existing value; unknown names add a new chain and then need both fields.
type Override struct {
	ID     uint64 `yaml:"id"`
	RPCURL string `yaml:"rpc_url"`
}

// WithOverrides returns a new registry with the overrides applied.
func (r *Registry) WithOverrides(overrides map[string]Override) (*Registry, error) {
	merged := make(map[string]Chain, len(r.byName)+len(overrides))
	for name, c := range r.byName {
		merged[name] = c
	}
	for name, o := range overrides {
		c, ok := merged[name]
		if !ok {
			c = Chain{Name: name}
		}
		if o.ID != 0 {
			c.ID = o.ID
		}
		if strings.TrimSpace(o.RPCURL) != "" {
			c.RPCURL = o.RPCURL
		}
		merged[name] = c
	}

	names := make([]string, 0, len(merged))
	for name := range merged {
		names = append(names, name)
	}
	sort.Strings(names)
	list := make([]Chain, 0, len(names))
	for _, name := range names {
		list = append(list, merged[name])
	}
	return NewRegistry(list...)
}

// UnknownChain builds the error returned for a chain name outside of the
// valid set.
func UnknownChain(name, message string, valid []string) *xerrors.Error {
	return xerrors.New(CodeUnknownChain, message,
		xerrors.WithMetadata("chain", name),
		xerrors.WithMetadata("valid", strings.Join(valid, ",")),
	)
}
