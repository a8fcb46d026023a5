// Package router assembles the gin route tree of the returns API.
package router

import (
	"net/http"
	"path"

	"github.com/gin-gonic/gin"
)

// Route is one endpoint of a group, as mounted
type Route struct {
	Method string
	Path   string
}

type route struct {
	Route
	handlers []gin.HandlerFunc
}

// DomainGroup collects the routes of one resource. Nothing reaches gin until
// the group is mounted, so groups can be built and inspected in isolation.
type DomainGroup struct {
	name       string
	prefix     string
	middleware []gin.HandlerFunc
	routes     []route
	children   []*DomainGroup
}

func NewDomainGroup(name, prefix string) *DomainGroup {
	return &DomainGroup{name: name, prefix: prefix}
}

func (g *DomainGroup) Name() string { return g.name }

// Use adds middleware that runs ahead of every route in the group and its children
func (g *DomainGroup) Use(middleware ...gin.HandlerFunc) *DomainGroup {
	g.middleware = append(g.middleware, middleware...)
	return g
}

// Handle adds a route. The last handler serves the request; any before it
// act as route-level middleware.
func (g *DomainGroup) Handle(method, relPath string, handlers ...gin.HandlerFunc) *DomainGroup {
	g.routes = append(g.routes, route{Route: Route{Method: method, Path: relPath}, handlers: handlers})
	return g
}

func (g *DomainGroup) GET(p string, h ...gin.HandlerFunc) *DomainGroup {
	return g.Handle(http.MethodGet, p, h...)
}
func (g *DomainGroup) POST(p string, h ...gin.HandlerFunc) *DomainGroup {
	return g.Handle(http.MethodPost, p, h...)
}
func (g *DomainGroup) PUT(p string, h ...gin.HandlerFunc) *DomainGroup {
	return g.Handle(http.MethodPut, p, h...)
}
func (g *DomainGroup) PATCH(p string, h ...gin.HandlerFunc) *DomainGroup {
	return g.Handle(http.MethodPatch, p, h...)
}
func (g *DomainGroup) DELETE(p string, h ...gin.HandlerFunc) *DomainGroup {
	return g.Handle(http.MethodDelete, p, h...)
}

// Group nests a child group under this one and returns the child
func (g *DomainGroup) Group(name, prefix string) *DomainGroup {
	child := NewDomainGroup(name, prefix)
	g.children = append(g.children, child)
	return child
}

// Routes lists every route of the group and its children with full paths under base
func (g *DomainGroup) Routes(base string) []Route {
	base = path.Join(base, g.prefix)
	out := make([]Route, 0, len(g.routes))
	for _, r := range g.routes {
		out = append(out, Route{Method: r.Method, Path: joinRoute(base, r.Path)})
	}
	for _, child := range g.children {
		out = append(out, child.Routes(base)...)
	}
	return out
}

func (g *DomainGroup) mount(parent gin.IRouter) {
	rg := parent.Group(g.prefix, g.middleware...)
	for _, r := range g.routes {
		rg.Handle(r.Method, r.Path, r.handlers...)
	}
	for _, child := range g.children {
		child.mount(rg)
	}
}

// Mount attaches groups under /api/<version>
func Mount(engine gin.IRouter, version string, groups ...*DomainGroup) {
	api := engine.Group(apiBase(version))
	for _, g := range groups {
		g.mount(api)
	}
}

func apiBase(version string) string {
	return "/api/" + version
}

// joinRoute keeps gin's treatment of an empty relative path: it maps to the
// group path itself with no trailing slash.
func joinRoute(base, rel string) string {
	if rel == "" {
		return base
	}
	return path.Join(base, rel)
}
