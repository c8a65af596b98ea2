// Package oscquery describes the daemon's OSC endpoint over HTTP and mDNS so
// clients can discover where to send parameter updates.
package oscquery

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Access levels of an OSC method.
const (
	AccessNone      = 0
	AccessRead      = 1
	AccessWrite     = 2
	AccessReadWrite = 3
)

// Node is one entry of the OSC address namespace.
type Node struct {
	FullPath    string           `json:"FULL_PATH"`
	Access      int              `json:"ACCESS"`
	Description string           `json:"DESCRIPTION,omitempty"`
	Contents    map[string]*Node `json:"CONTENTS,omitempty"`
}

// HostInfo answers the HOST_INFO query.
type HostInfo struct {
	Name         string          `json:"NAME"`
	OSCIP        string          `json:"OSC_IP"`
	OSCPort      int             `json:"OSC_PORT"`
	OSCTransport string          `json:"OSC_TRANSPORT"`
	Extensions   map[string]bool `json:"EXTENSIONS"`
}

// Server serves the namespace tree and host info.
type Server struct {
	root *Node
	info HostInfo
}

// NewServer creates a namespace with a root node and no methods.
func NewServer(name, oscIP string, oscPort int) *Server {
	return &Server{
		root: &Node{
			FullPath:    "/",
			Access:      AccessNone,
			Description: "root node",
			Contents:    map[string]*Node{},
		},
		info: HostInfo{
			Name:         name,
			OSCIP:        oscIP,
			OSCPort:      oscPort,
			OSCTransport: "UDP",
			Extensions: map[string]bool{
				"ACCESS":      true,
				"VALUE":       true,
				"DESCRIPTION": true,
			},
		},
	}
}

// AddMethod registers path, creating intermediate container nodes.
func (s *Server) AddMethod(path, description string, access int) {
	node := s.root
	var full string
	for _, part := range strings.Split(strings.Trim(path, "/"), "/") {
		if part == "" {
			continue
		}
		full += "/" + part
		child, ok := node.Contents[part]
		if !ok {
			child = &Node{FullPath: full, Access: AccessNone}
			if node.Contents == nil {
				node.Contents = map[string]*Node{}
			}
			node.Contents[part] = child
		}
		node = child
	}
	node.Description = description
	node.Access = access
}

// Lookup returns the node at path, or nil.
func (s *Server) Lookup(path string) *Node {
	node := s.root
	for _, part := range strings.Split(strings.Trim(path, "/"), "/") {
		if part == "" {
			continue
		}
		node = node.Contents[part]
		if node == nil {
			return nil
		}
	}
	return node
}

// HostInfo returns the host description.
func (s *Server) HostInfo() HostInfo {
	return s.info
}

// ServeHTTP answers namespace and HOST_INFO queries.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Has("HOST_INFO") {
		writeJSON(w, s.info)
		return
	}

	node := s.Lookup(r.URL.Path)
	if node == nil {
		http.NotFound(w, r)
		return
	}

	switch {
	case q.Has("ACCESS"):
		writeJSON(w, map[string]int{"ACCESS": node.Access})
	case q.Has("DESCRIPTION"):
		writeJSON(w, map[string]string{"DESCRIPTION": node.Description})
	case q.Has("FULL_PATH"):
		writeJSON(w, map[string]string{"FULL_PATH": node.FullPath})
	default:
		writeJSON(w, node)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
