// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package nifitest runs an in-memory imitation of the NiFi REST endpoints
// used by flowswap, for tests.
//
// The fake keeps groups, processors, ports and connections in memory,
// enforces revisions the way NiFi does (a stale version is rejected with a
// 400 naming the stale revision), records every call in order, and lets a
// test inject failures on specific method and path pairs.
package nifitest

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/flowswap/pkg/nifi"
)

// APIPrefix is the path under which the fake serves the API.
const APIPrefix = "/nifi-api"

// Call is one recorded request. Path excludes APIPrefix and the query.
type Call struct {
	Method string
	Path   string
}

// Fault makes matching requests fail with Status and Body. Times limits how
// many requests it applies to; zero means every matching request.
type Fault struct {
	Method string
	Path   string
	Status int
	Body   string
	Times  int
}

// TemplateFunc builds the components a template instance creates and
// returns the ids of the top-level groups it added under parentID.
type TemplateFunc func(s *Server, parentID string, origin nifi.Position) []string

type group struct {
	id      string
	parent  string
	name    string
	pos     nifi.Position
	version int64
	state   nifi.RunState
}

type processor struct {
	id      string
	group   string
	name    string
	state   nifi.RunState
	version int64
	history []nifi.RunState
}

type port struct {
	id    string
	group string
	name  string
	kind  nifi.ComponentType
}

// Server is the fake. All methods are safe for concurrent use.
type Server struct {
	mu          sync.Mutex
	groups      map[string]*group
	processors  map[string]*processor
	ports       map[string]*port
	connections map[string]*nifi.ConnectionEntity
	templates   map[string]string
	calls       []Call
	faults      []*Fault
	seq         int

	// OnInstantiate is invoked for template-instance requests.
	OnInstantiate TemplateFunc

	engine *gin.Engine
	http   *httptest.Server
}

// NewServer starts a fake on a loopback listener. Call Close when done.
func NewServer() *Server {
	gin.SetMode(gin.TestMode)
	s := &Server{
		groups:      make(map[string]*group),
		processors:  make(map[string]*processor),
		ports:       make(map[string]*port),
		connections: make(map[string]*nifi.ConnectionEntity),
		templates:   make(map[string]string),
	}
	s.engine = gin.New()
	s.routes()
	s.http = httptest.NewServer(s.engine)
	return s
}

// URL returns the API base URL to hand to nifi.NewClient.
func (s *Server) URL() string {
	return s.http.URL + APIPrefix
}

// Close shuts the listener down.
func (s *Server) Close() {
	s.http.Close()
}

func (s *Server) routes() {
	api := s.engine.Group(APIPrefix, s.record, s.inject)

	api.GET("/flow/process-groups/:id", s.getFlow)
	api.PUT("/flow/process-groups/:id", s.scheduleGroup)
	api.GET("/flow/search-results", s.search)

	api.GET("/process-groups/:id", s.getGroup)
	api.PUT("/process-groups/:id", s.putGroup)
	api.POST("/process-groups/:id/connections", s.createConnection)
	api.POST("/process-groups/:id/templates/upload", s.uploadTemplate)
	api.POST("/process-groups/:id/template-instance", s.instantiateTemplate)

	api.GET("/processors/:id", s.getProcessor)
	api.PUT("/processors/:id", s.putProcessor)

	api.GET("/connections/:id", s.getConnection)
	api.PUT("/connections/:id", s.putConnection)
	api.DELETE("/connections/:id", s.deleteConnection)
}

// -----------------------------------------------------------------------------
// Seeding and Inspection
// -----------------------------------------------------------------------------

// AddGroup registers a process group.
func (s *Server) AddGroup(id, parent, name string, pos nifi.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[id] = &group{id: id, parent: parent, name: name, pos: pos, state: nifi.StateStopped}
}

// AddProcessor registers a processor in state.
func (s *Server) AddProcessor(id, groupID, name string, state nifi.RunState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processors[id] = &processor{id: id, group: groupID, name: name, state: state}
}

// AddInputPort registers an input port.
func (s *Server) AddInputPort(id, groupID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ports[id] = &port{id: id, group: groupID, name: name, kind: nifi.TypeInputPort}
}

// AddOutputPort registers an output port.
func (s *Server) AddOutputPort(id, groupID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ports[id] = &port{id: id, group: groupID, name: name, kind: nifi.TypeOutputPort}
}

// Connect registers a connection inside parentID between two existing
// components.
func (s *Server) Connect(id, parentID, sourceID, destinationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connections[id] = &nifi.ConnectionEntity{
		ID: id,
		Component: nifi.ConnectionDTO{
			ID:            id,
			ParentGroupID: parentID,
			Source:        s.endpointLocked(sourceID),
			Destination:   s.endpointLocked(destinationID),
		},
	}
}

// Inject adds a fault.
func (s *Server) Inject(f Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fault := f
	s.faults = append(s.faults, &fault)
}

// Calls returns the recorded requests in arrival order.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// Mutations returns the recorded non-GET requests in arrival order.
func (s *Server) Mutations() []Call {
	var out []Call
	for _, c := range s.Calls() {
		if c.Method != http.MethodGet {
			out = append(out, c)
		}
	}
	return out
}

// ProcessorHistory returns every state a processor was put into.
func (s *Server) ProcessorHistory(id string) []nifi.RunState {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.processors[id]
	if !ok {
		return nil
	}
	return append([]nifi.RunState(nil), p.history...)
}

// GroupState returns a group's scheduled state.
func (s *Server) GroupState(id string) nifi.RunState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.groups[id]; ok {
		return g.state
	}
	return ""
}

// GroupPosition returns a group's canvas position.
func (s *Server) GroupPosition(id string) nifi.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.groups[id]; ok {
		return g.pos
	}
	return nifi.Position{}
}

// Connections returns every connection, ordered by id.
func (s *Server) Connections() []nifi.ConnectionEntity {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]nifi.ConnectionEntity, 0, len(s.connections))
	for _, c := range s.connections {
		out = append(out, s.decorateLocked(*c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Template returns the uploaded template document for id.
func (s *Server) Template(id string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.templates[id]
	return doc, ok
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) record(c *gin.Context) {
	s.mu.Lock()
	s.calls = append(s.calls, Call{
		Method: c.Request.Method,
		Path:   strings.TrimPrefix(c.Request.URL.Path, APIPrefix),
	})
	s.mu.Unlock()
	c.Next()
}

func (s *Server) inject(c *gin.Context) {
	path := strings.TrimPrefix(c.Request.URL.Path, APIPrefix)
	s.mu.Lock()
	var hit *Fault
	for _, f := range s.faults {
		if f.Method == c.Request.Method && f.Path == path && f.Times >= 0 {
			hit = f
			if f.Times > 0 {
				f.Times--
				if f.Times == 0 {
					f.Times = -1
				}
			}
			break
		}
	}
	s.mu.Unlock()

	if hit != nil {
		c.String(hit.Status, hit.Body)
		c.Abort()
		return
	}
	c.Next()
}

// -----------------------------------------------------------------------------
// Helpers (callers hold s.mu)
// -----------------------------------------------------------------------------

func (s *Server) nextID(prefix string) string {
	s.seq++
	return prefix + "-" + strconv.Itoa(s.seq)
}

func (s *Server) endpointLocked(id string) nifi.ConnectableDTO {
	if p, ok := s.processors[id]; ok {
		return nifi.ConnectableDTO{ID: id, GroupID: p.group, Type: nifi.TypeProcessor, Name: p.name}
	}
	if p, ok := s.ports[id]; ok {
		return nifi.ConnectableDTO{ID: id, GroupID: p.group, Type: p.kind, Name: p.name}
	}
	return nifi.ConnectableDTO{ID: id}
}

// decorateLocked fills the flattened and name fields NiFi derives.
func (s *Server) decorateLocked(conn nifi.ConnectionEntity) nifi.ConnectionEntity {
	src := s.endpointLocked(conn.Component.Source.ID)
	dst := s.endpointLocked(conn.Component.Destination.ID)
	conn.Component.Source = src
	conn.Component.Destination = dst
	conn.SourceID, conn.SourceGroupID, conn.SourceType = src.ID, src.GroupID, src.Type
	conn.DestinationID, conn.DestinationGroupID, conn.DestinationType = dst.ID, dst.GroupID, dst.Type
	return conn
}

func staleRevision(c *gin.Context, id string) {
	c.String(http.StatusBadRequest,
		"[%d, null, %s] is not the most up-to-date revision. This component appears to have been modified", 0, id)
}

func notFound(c *gin.Context, kind, id string) {
	c.String(http.StatusNotFound, "Unable to find %s with id '%s'.", kind, id)
}

// -----------------------------------------------------------------------------
// Process Group Handlers
// -----------------------------------------------------------------------------

func (s *Server) getFlow(c *gin.Context) {
	id := c.Param("id")
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[id]
	if !ok {
		notFound(c, "process group", id)
		return
	}
	flow := nifi.FlowDTO{}
	for _, child := range s.groups {
		if child.parent == id {
			flow.ProcessGroups = append(flow.ProcessGroups, s.groupEntityLocked(child))
		}
	}
	for _, p := range s.processors {
		if p.group == id {
			flow.Processors = append(flow.Processors, s.processorEntityLocked(p))
		}
	}
	for _, p := range s.ports {
		if p.group != id {
			continue
		}
		entity := nifi.PortEntity{ID: p.id, Component: nifi.PortDTO{ID: p.id, ParentGroupID: p.group, Name: p.name, Type: p.kind}}
		if p.kind == nifi.TypeInputPort {
			flow.InputPorts = append(flow.InputPorts, entity)
		} else {
			flow.OutputPorts = append(flow.OutputPorts, entity)
		}
	}
	for _, conn := range s.connections {
		if conn.Component.ParentGroupID == id {
			flow.Connections = append(flow.Connections, s.decorateLocked(*conn))
		}
	}
	sort.Slice(flow.Connections, func(i, j int) bool { return flow.Connections[i].ID < flow.Connections[j].ID })

	c.JSON(http.StatusOK, nifi.ProcessGroupFlowEntity{
		ProcessGroupFlow: nifi.ProcessGroupFlowDTO{ID: g.id, ParentGroupID: g.parent, Flow: flow},
	})
}

func (s *Server) groupEntityLocked(g *group) nifi.ProcessGroupEntity {
	pos := g.pos
	return nifi.ProcessGroupEntity{
		Revision:  nifi.Revision{Version: g.version},
		ID:        g.id,
		Component: nifi.ProcessGroupDTO{ID: g.id, ParentGroupID: g.parent, Name: g.name, Position: &pos},
	}
}

func (s *Server) scheduleGroup(c *gin.Context) {
	id := c.Param("id")
	var body nifi.ScheduleComponentsEntity
	if err := c.ShouldBindJSON(&body); err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[id]
	if !ok {
		notFound(c, "process group", id)
		return
	}
	g.state = body.State
	c.JSON(http.StatusOK, body)
}

func (s *Server) getGroup(c *gin.Context) {
	id := c.Param("id")
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		notFound(c, "process group", id)
		return
	}
	c.JSON(http.StatusOK, s.groupEntityLocked(g))
}

func (s *Server) putGroup(c *gin.Context) {
	id := c.Param("id")
	var body nifi.ProcessGroupEntity
	if err := c.ShouldBindJSON(&body); err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[id]
	if !ok {
		notFound(c, "process group", id)
		return
	}
	if body.Revision.Version != g.version {
		staleRevision(c, id)
		return
	}
	if body.Component.Position != nil {
		g.pos = *body.Component.Position
	}
	if body.Component.Name != "" {
		g.name = body.Component.Name
	}
	g.version++
	c.JSON(http.StatusOK, s.groupEntityLocked(g))
}

// -----------------------------------------------------------------------------
// Processor Handlers
// -----------------------------------------------------------------------------

func (s *Server) processorEntityLocked(p *processor) nifi.ProcessorEntity {
	return nifi.ProcessorEntity{
		Revision:  nifi.Revision{Version: p.version},
		ID:        p.id,
		Component: nifi.ProcessorDTO{ID: p.id, ParentGroupID: p.group, Name: p.name, State: p.state},
	}
}

func (s *Server) getProcessor(c *gin.Context) {
	id := c.Param("id")
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.processors[id]
	if !ok {
		notFound(c, "processor", id)
		return
	}
	c.JSON(http.StatusOK, s.processorEntityLocked(p))
}

func (s *Server) putProcessor(c *gin.Context) {
	id := c.Param("id")
	var body nifi.ProcessorEntity
	if err := c.ShouldBindJSON(&body); err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.processors[id]
	if !ok {
		notFound(c, "processor", id)
		return
	}
	if body.Revision.Version != p.version {
		staleRevision(c, id)
		return
	}
	if body.Component.State != "" {
		p.state = body.Component.State
		p.history = append(p.history, body.Component.State)
	}
	p.version++
	c.JSON(http.StatusOK, s.processorEntityLocked(p))
}

// -----------------------------------------------------------------------------
// Connection Handlers
// -----------------------------------------------------------------------------

func (s *Server) getConnection(c *gin.Context) {
	id := c.Param("id")
	s.mu.Lock()
	defer s.mu.Unlock()
	conn, ok := s.connections[id]
	if !ok {
		notFound(c, "connection", id)
		return
	}
	c.JSON(http.StatusOK, s.decorateLocked(*conn))
}

func (s *Server) putConnection(c *gin.Context) {
	id := c.Param("id")
	var body nifi.ConnectionEntity
	if err := c.ShouldBindJSON(&body); err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, ok := s.connections[id]
	if !ok {
		notFound(c, "connection", id)
		return
	}
	if body.Revision.Version != conn.Revision.Version {
		staleRevision(c, id)
		return
	}
	if _, ok := s.ports[body.Component.Destination.ID]; !ok {
		if _, ok := s.processors[body.Component.Destination.ID]; !ok {
			c.String(http.StatusBadRequest, "Unable to find the specified destination.")
			return
		}
	}
	conn.Component.Destination = nifi.ConnectableDTO{ID: body.Component.Destination.ID}
	conn.Revision.Version++
	c.JSON(http.StatusOK, s.decorateLocked(*conn))
}

func (s *Server) createConnection(c *gin.Context) {
	parentID := c.Param("id")
	var body nifi.ConnectionEntity
	if err := c.ShouldBindJSON(&body); err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.groups[parentID]; !ok {
		notFound(c, "process group", parentID)
		return
	}
	if body.Revision.Version != 0 {
		c.String(http.StatusBadRequest, "A revision of 0 must be specified when creating a new Connection.")
		return
	}
	id := s.nextID("conn")
	created := body
	created.ID = id
	created.Revision = nifi.Revision{ClientID: body.Revision.ClientID, Version: 1}
	created.Component.ID = id
	created.Component.ParentGroupID = parentID
	s.connections[id] = &created

	c.Header("Location", fmt.Sprintf("%s%s/connections/%s", s.http.URL, APIPrefix, id))
	c.JSON(http.StatusCreated, s.decorateLocked(created))
}

func (s *Server) deleteConnection(c *gin.Context) {
	id := c.Param("id")
	version, err := strconv.ParseInt(c.Query("version"), 10, 64)
	if err != nil || c.Query("clientId") == "" {
		c.String(http.StatusBadRequest, "version and clientId are required")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, ok := s.connections[id]
	if !ok {
		notFound(c, "connection", id)
		return
	}
	if version != conn.Revision.Version {
		staleRevision(c, id)
		return
	}
	delete(s.connections, id)
	c.JSON(http.StatusOK, s.decorateLocked(*conn))
}

// -----------------------------------------------------------------------------
// Search and Templates
// -----------------------------------------------------------------------------

func (s *Server) search(c *gin.Context) {
	q := strings.ToLower(c.Query("q"))
	s.mu.Lock()
	defer s.mu.Unlock()

	var out nifi.SearchResults
	if q != "" {
		for _, p := range s.ports {
			if !strings.Contains(strings.ToLower(p.name), q) {
				continue
			}
			hit := nifi.SearchResult{ID: p.id, GroupID: p.group, Name: p.name, Matches: []string{"Name: " + p.name}}
			if p.kind == nifi.TypeInputPort {
				out.InputPortResults = append(out.InputPortResults, hit)
			} else {
				out.OutputPortResults = append(out.OutputPortResults, hit)
			}
		}
		for _, p := range s.processors {
			if strings.Contains(strings.ToLower(p.name), q) {
				out.ProcessorResults = append(out.ProcessorResults, nifi.SearchResult{ID: p.id, GroupID: p.group, Name: p.name})
			}
		}
		for _, g := range s.groups {
			if strings.Contains(strings.ToLower(g.name), q) {
				out.ProcessGroupResults = append(out.ProcessGroupResults, nifi.SearchResult{ID: g.id, GroupID: g.parent, Name: g.name})
			}
		}
	}
	c.JSON(http.StatusOK, nifi.SearchResultsEntity{Results: out})
}

func (s *Server) uploadTemplate(c *gin.Context) {
	parentID := c.Param("id")
	file, err := c.FormFile("template")
	if err != nil {
		c.String(http.StatusBadRequest, "template file is required")
		return
	}
	f, err := file.Open()
	if err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}
	defer f.Close()
	doc, err := io.ReadAll(f)
	if err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[parentID]; !ok {
		notFound(c, "process group", parentID)
		return
	}
	id := s.nextID("template")
	s.templates[id] = string(doc)
	c.Header("Location", fmt.Sprintf("%s%s/templates/%s", s.http.URL, APIPrefix, id))
	c.String(http.StatusCreated, "<templateEntity><template><id>%s</id></template></templateEntity>", id)
}

func (s *Server) instantiateTemplate(c *gin.Context) {
	parentID := c.Param("id")
	var body nifi.InstantiateTemplateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	_, parentOK := s.groups[parentID]
	_, templateOK := s.templates[body.TemplateID]
	build := s.OnInstantiate
	s.mu.Unlock()

	if !parentOK {
		notFound(c, "process group", parentID)
		return
	}
	if !templateOK {
		notFound(c, "template", body.TemplateID)
		return
	}

	var created []string
	if build != nil {
		created = build(s, parentID, nifi.Position{X: body.OriginX, Y: body.OriginY})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var flow nifi.FlowDTO
	for _, id := range created {
		if g, ok := s.groups[id]; ok {
			flow.ProcessGroups = append(flow.ProcessGroups, s.groupEntityLocked(g))
		}
	}
	c.JSON(http.StatusCreated, nifi.FlowEntity{Flow: flow})
}
