package agents

import (
	"strings"

	"fleetdex/internal/store"

	"github.com/spf13/cast"
	"golang.org/x/crypto/bcrypt"
)

// Document field names in the agents index.
const (
	FieldName   = "name"
	FieldKey    = "key"
	FieldGroups = "groups"
	FieldHost   = "host"
)

// DefaultGroup is the group every agent joins on enrollment.
const DefaultGroup = "default"

// OS describes the operating system reported by an agent.
type OS struct {
	Full string `json:"full,omitempty"`
}

// Host describes the machine an agent runs on.
type Host struct {
	IP []string `json:"ip,omitempty"`
	OS *OS      `json:"os,omitempty"`
}

// Agent is an enrolled agent record. Groups is a comma-joined ordered
// list of group names; after any mutation it contains no empty
// elements and no duplicate name, except that repeated group adds
// intentionally duplicate (see Index.AddToGroup).
//
// A search with a narrowed projection returns partially populated
// agents: a zero field means "not requested", not "absent".
type Agent struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	// RawKey is the write-only enrollment key. It is never persisted
	// or serialized; only its bcrypt digest reaches the store.
	RawKey  string `json:"-"`
	KeyHash string `json:"key,omitempty"`
	Groups  string `json:"groups,omitempty"`
	Host    *Host  `json:"host,omitempty"`
}

// GroupList returns the group names in order, dropping empty elements
// left by removing the last group.
func (a *Agent) GroupList() []string {
	if a.Groups == "" {
		return nil
	}
	parts := strings.Split(a.Groups, ",")
	groups := parts[:0]
	for _, g := range parts {
		if g != "" {
			groups = append(groups, g)
		}
	}
	return groups
}

// InGroup reports whether the agent belongs to the group.
func (a *Agent) InGroup(group string) bool {
	for _, g := range a.GroupList() {
		if g == group {
			return true
		}
	}
	return false
}

// VerifyKey reports whether the raw key matches the stored digest.
func (a *Agent) VerifyKey(raw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(a.KeyHash), []byte(raw)) == nil
}

// document serializes the fields present on the agent. Zero fields are
// omitted so the result can drive a store-level partial merge.
func (a *Agent) document() store.Document {
	doc := store.Document{}
	if a.Name != "" {
		doc[FieldName] = a.Name
	}
	if a.KeyHash != "" {
		doc[FieldKey] = a.KeyHash
	}
	if a.Groups != "" {
		doc[FieldGroups] = a.Groups
	}
	if a.Host != nil {
		host := map[string]any{}
		if len(a.Host.IP) > 0 {
			ips := make([]any, len(a.Host.IP))
			for i, ip := range a.Host.IP {
				ips[i] = ip
			}
			host["ip"] = ips
		}
		if a.Host.OS != nil && a.Host.OS.Full != "" {
			host["os"] = map[string]any{"full": a.Host.OS.Full}
		}
		doc[FieldHost] = host
	}
	return doc
}

// agentFromSource deserializes whatever projection the store returned.
func agentFromSource(id string, src store.Document) *Agent {
	a := &Agent{
		ID:      id,
		Name:    cast.ToString(src[FieldName]),
		KeyHash: cast.ToString(src[FieldKey]),
		Groups:  cast.ToString(src[FieldGroups]),
	}
	if hostVal, ok := src[FieldHost].(map[string]any); ok {
		host := &Host{
			IP: cast.ToStringSlice(hostVal["ip"]),
		}
		if osVal, ok := hostVal["os"].(map[string]any); ok {
			host.OS = &OS{Full: cast.ToString(osVal["full"])}
		}
		a.Host = host
	}
	return a
}
