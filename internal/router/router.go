// Package router picks the destination silo for a user query. It only
// routes while metaCo is enabled; the flag is read through FlagSource so the
// router never touches the host or the state file itself.
package router

import (
	"errors"
	"log/slog"
	"strings"
)

// DefaultDestination receives queries no keyword matches.
const DefaultDestination = "Default Copilot"

// ErrBlocked is returned for every query while metaCo is off.
var ErrBlocked = errors.New("metaCo is OFF, query blocked")

// ErrEmptyQuery is returned for a blank query.
var ErrEmptyQuery = errors.New("router: empty query")

// FlagSource reports the cached enabled flag.
type FlagSource interface {
	Enabled() bool
}

// Decision is the outcome of routing one query.
type Decision struct {
	Destination string `json:"destination"`
	Keyword     string `json:"keyword,omitempty"`
	Default     bool   `json:"default"`
}

// Router routes queries against a Table.
type Router struct {
	table *Table
	flag  FlagSource
}

// New returns a router. A nil table routes everything to DefaultDestination.
func New(table *Table, flag FlagSource) *Router {
	if table == nil {
		table = &Table{}
	}
	return &Router{table: table, flag: flag}
}

// Table returns the routing table in use.
func (r *Router) Table() *Table { return r.table }

// Route returns where query should go, or ErrBlocked while disabled.
func (r *Router) Route(query string) (Decision, error) {
	if !r.flag.Enabled() {
		return Decision{}, ErrBlocked
	}
	if strings.TrimSpace(query) == "" {
		return Decision{}, ErrEmptyQuery
	}
	if silo, kw, ok := r.table.Match(query); ok {
		return Decision{Destination: silo, Keyword: kw}, nil
	}
	return Decision{Destination: DefaultDestination, Default: true}, nil
}

// Forward routes query and hands it to the chosen silo. Silo integrations do
// not exist yet, so forwarding is only logged.
func (r *Router) Forward(query string) (Decision, error) {
	d, err := r.Route(query)
	if err != nil {
		slog.Info("router: query not forwarded", "err", err)
		return d, err
	}
	slog.Info("router: forwarding query", "silo", d.Destination, "keyword", d.Keyword, "len", len(query))
	return d, nil
}
