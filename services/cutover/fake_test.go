// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cutover

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/AleutianAI/flowswap/pkg/nifi"
)

// =============================================================================
// Recording Fake
// =============================================================================

// call is one recorded API invocation.
type call struct {
	op string
	id string
}

func (c call) String() string { return c.op + " " + c.id }

// mutatingOps are the operations that change platform state.
var mutatingOps = map[string]bool{
	"UpdateProcessorState": true,
	"UpdateConnection":     true,
	"CreateConnection":     true,
	"DeleteConnection":     true,
	"ScheduleProcessGroup": true,
	"UpdateProcessGroup":   true,
}

// fakeAPI is an in-memory FlowAPI that records every call and can fail
// chosen operations.
type fakeAPI struct {
	mu          sync.Mutex
	calls       []call
	groups      map[string]*nifi.ProcessGroupEntity
	groupState  map[string]nifi.RunState
	processors  map[string]*nifi.ProcessorEntity
	history     map[string][]nifi.RunState
	connections map[string]*nifi.ConnectionEntity
	ports       []nifi.SearchResult // with kind encoded in matches[0]
	failures    map[string]failure // "op id" -> failure
	lost        map[string]error   // "op id" -> error returned after applying
	counts      map[string]int
	seq         int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		groups:      make(map[string]*nifi.ProcessGroupEntity),
		groupState:  make(map[string]nifi.RunState),
		processors:  make(map[string]*nifi.ProcessorEntity),
		history:     make(map[string][]nifi.RunState),
		connections: make(map[string]*nifi.ConnectionEntity),
		failures:    make(map[string]failure),
		lost:        make(map[string]error),
		counts:      make(map[string]int),
	}
}

// --- seeding ---

func (f *fakeAPI) addGroup(id, parent string) {
	f.groups[id] = &nifi.ProcessGroupEntity{
		ID:        id,
		Component: nifi.ProcessGroupDTO{ID: id, ParentGroupID: parent, Position: &nifi.Position{}},
	}
}

func (f *fakeAPI) addProcessor(id, group string, state nifi.RunState) {
	f.processors[id] = &nifi.ProcessorEntity{
		ID:        id,
		Revision:  nifi.Revision{Version: 1},
		Component: nifi.ProcessorDTO{ID: id, ParentGroupID: group, Name: id, State: state},
	}
}

func (f *fakeAPI) addPort(kind nifi.ComponentType, id, group, name string) {
	f.ports = append(f.ports, nifi.SearchResult{ID: id, GroupID: group, Name: name, Matches: []string{string(kind)}})
}

func (f *fakeAPI) connect(id, parent string, src, dst nifi.ConnectableDTO) {
	f.connections[id] = &nifi.ConnectionEntity{
		ID:       id,
		Revision: nifi.Revision{Version: 3},
		Component: nifi.ConnectionDTO{
			ID:            id,
			ParentGroupID: parent,
			Name:          id,
			Source:        src,
			Destination:   dst,
		},
	}
}

// failure is an injected error. nth selects which matching call fails,
// counting from one; zero fails every call.
type failure struct {
	err error
	nth int
}

func (f *fakeAPI) failOn(op, id string, err error) {
	f.failOnNth(op, id, 0, err)
}

func (f *fakeAPI) failOnNth(op, id string, nth int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[op+" "+id] = failure{err: err, nth: nth}
}

// loseResponse makes the next matching call apply its change and then
// return err, as when NiFi commits a request whose reply never arrives.
func (f *fakeAPI) loseResponse(op, id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lost[op+" "+id] = err
}

// --- inspection ---

func (f *fakeAPI) recorded() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func (f *fakeAPI) mutations() []call {
	var out []call
	for _, c := range f.recorded() {
		if mutatingOps[c.op] {
			out = append(out, c)
		}
	}
	return out
}

// indexOf returns the position of the first mutation matching op and id, or -1.
func (f *fakeAPI) indexOf(op, id string) int {
	for i, c := range f.mutations() {
		if c.op == op && (id == "" || c.id == id) {
			return i
		}
	}
	return -1
}

// lastIndexOf returns the position of the last mutation matching op, or -1.
func (f *fakeAPI) lastIndexOf(op string) int {
	idx := -1
	for i, c := range f.mutations() {
		if c.op == op {
			idx = i
		}
	}
	return idx
}

func (f *fakeAPI) connectionIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.connections))
	for id := range f.connections {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// record logs the call and returns an injected failure, if any.
func (f *fakeAPI) record(op, id string) error {
	key := op + " " + id
	f.calls = append(f.calls, call{op: op, id: id})
	f.counts[key]++
	fail, ok := f.failures[key]
	if !ok || (fail.nth != 0 && fail.nth != f.counts[key]) {
		return nil
	}
	return fail.err
}

func notFound(kind, id string) error {
	return &nifi.APIError{Method: "GET", Path: "/" + kind + "/" + id, Status: 404, Kind: nifi.ErrNotFound}
}

func transportFailure(id string) error {
	return &nifi.APIError{Method: "POST", Path: "/" + id, Kind: nifi.ErrTransport,
		Cause: errors.New("context deadline exceeded")}
}

func conflict(id string) error {
	return &nifi.APIError{Method: "PUT", Path: "/" + id, Status: 400,
		Body: id + " is not the most up-to-date revision", Kind: nifi.ErrRevisionConflict}
}

// --- FlowAPI ---

func (f *fakeAPI) ClientID() string { return "fake-client" }

func (f *fakeAPI) GetProcessGroupFlow(_ context.Context, id string) (*nifi.ProcessGroupFlowEntity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("GetProcessGroupFlow", id); err != nil {
		return nil, err
	}
	if _, ok := f.groups[id]; !ok {
		return nil, notFound("process-groups", id)
	}
	out := &nifi.ProcessGroupFlowEntity{ProcessGroupFlow: nifi.ProcessGroupFlowDTO{ID: id}}
	ids := make([]string, 0, len(f.connections))
	for cid, c := range f.connections {
		if c.Component.ParentGroupID == id {
			ids = append(ids, cid)
		}
	}
	sort.Strings(ids)
	for _, cid := range ids {
		out.ProcessGroupFlow.Flow.Connections = append(out.ProcessGroupFlow.Flow.Connections, *f.connections[cid])
	}
	return out, nil
}

func (f *fakeAPI) GetProcessGroup(_ context.Context, id string) (*nifi.ProcessGroupEntity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("GetProcessGroup", id); err != nil {
		return nil, err
	}
	g, ok := f.groups[id]
	if !ok {
		return nil, notFound("process-groups", id)
	}
	cp := *g
	return &cp, nil
}

func (f *fakeAPI) UpdateProcessGroup(_ context.Context, pg *nifi.ProcessGroupEntity) (*nifi.ProcessGroupEntity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("UpdateProcessGroup", pg.ID); err != nil {
		return nil, err
	}
	g, ok := f.groups[pg.ID]
	if !ok {
		return nil, notFound("process-groups", pg.ID)
	}
	if pg.Revision.Version != g.Revision.Version {
		return nil, conflict(pg.ID)
	}
	g.Revision.Version++
	if pg.Component.Position != nil {
		pos := *pg.Component.Position
		g.Component.Position = &pos
	}
	cp := *g
	return &cp, nil
}

func (f *fakeAPI) ScheduleProcessGroup(_ context.Context, id string, state nifi.RunState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ScheduleProcessGroup", id); err != nil {
		return err
	}
	if _, ok := f.groups[id]; !ok {
		return notFound("process-groups", id)
	}
	f.groupState[id] = state
	return nil
}

func (f *fakeAPI) GetProcessor(_ context.Context, id string) (*nifi.ProcessorEntity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("GetProcessor", id); err != nil {
		return nil, err
	}
	p, ok := f.processors[id]
	if !ok {
		return nil, notFound("processors", id)
	}
	cp := *p
	return &cp, nil
}

func (f *fakeAPI) UpdateProcessorState(_ context.Context, id string, rev nifi.Revision, state nifi.RunState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("UpdateProcessorState", id); err != nil {
		return err
	}
	p, ok := f.processors[id]
	if !ok {
		return notFound("processors", id)
	}
	if rev.Version != p.Revision.Version {
		return conflict(id)
	}
	p.Revision.Version++
	p.Component.State = state
	f.history[id] = append(f.history[id], state)
	return nil
}

func (f *fakeAPI) GetConnection(_ context.Context, id string) (*nifi.ConnectionEntity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("GetConnection", id); err != nil {
		return nil, err
	}
	c, ok := f.connections[id]
	if !ok {
		return nil, notFound("connections", id)
	}
	cp := *c
	return &cp, nil
}

func (f *fakeAPI) UpdateConnection(_ context.Context, conn *nifi.ConnectionEntity) (*nifi.ConnectionEntity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("UpdateConnection", conn.ID); err != nil {
		return nil, err
	}
	c, ok := f.connections[conn.ID]
	if !ok {
		return nil, notFound("connections", conn.ID)
	}
	if conn.Revision.Version != c.Revision.Version {
		return nil, conflict(conn.ID)
	}
	c.Revision.Version++
	c.Component.Destination = conn.Component.Destination
	cp := *c
	return &cp, nil
}

func (f *fakeAPI) CreateConnection(_ context.Context, parentID string, conn *nifi.ConnectionEntity) (*nifi.ConnectionEntity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := conn.Component.Source.ID + "->" + conn.Component.Destination.ID
	if err := f.record("CreateConnection", key); err != nil {
		return nil, err
	}
	if conn.Revision.Version != 0 {
		return nil, fmt.Errorf("create with version %d", conn.Revision.Version)
	}
	f.seq++
	id := fmt.Sprintf("new-%d", f.seq)
	created := *conn
	created.ID = id
	created.Revision = nifi.Revision{ClientID: conn.Revision.ClientID, Version: 1}
	created.Component.ID = id
	created.Component.ParentGroupID = parentID
	f.connections[id] = &created
	if err, ok := f.lost["CreateConnection "+key]; ok {
		delete(f.lost, "CreateConnection "+key)
		return nil, err
	}
	cp := created
	return &cp, nil
}

func (f *fakeAPI) DeleteConnection(_ context.Context, id string, rev nifi.Revision) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DeleteConnection", id); err != nil {
		return err
	}
	c, ok := f.connections[id]
	if !ok {
		return notFound("connections", id)
	}
	if rev.Version != c.Revision.Version {
		return conflict(id)
	}
	delete(f.connections, id)
	return nil
}

func (f *fakeAPI) Search(_ context.Context, q string) (*nifi.SearchResults, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("Search", q); err != nil {
		return nil, err
	}
	out := &nifi.SearchResults{}
	for _, p := range f.ports {
		if !strings.Contains(strings.ToLower(p.Name), strings.ToLower(q)) {
			continue
		}
		if p.Matches[0] == string(nifi.TypeInputPort) {
			out.InputPortResults = append(out.InputPortResults, p)
		} else {
			out.OutputPortResults = append(out.OutputPortResults, p)
		}
	}
	return out, nil
}

var _ FlowAPI = (*fakeAPI)(nil)

// =============================================================================
// Scenario Fixture
// =============================================================================

// Group and component ids used by the standard scenario.
const (
	rootID    = "root"
	currentID = "pg-old"
	targetID  = "pg-new"
)

func processorEnd(id string) nifi.ConnectableDTO {
	return nifi.ConnectableDTO{ID: id, GroupID: rootID, Type: nifi.TypeProcessor, Name: id}
}

func portEnd(kind nifi.ComponentType, id, group, name string) nifi.ConnectableDTO {
	return nifi.ConnectableDTO{ID: id, GroupID: group, Type: kind, Name: name}
}

// scenario builds the standard fixture: processor proc-a feeds the current
// group's input port "X" through c-in, and the current group's output port
// "Y" feeds processor proc-b through c-out. The target group holds fresh
// ports named "X" and "Y".
func scenario() *fakeAPI {
	f := newFakeAPI()
	f.addGroup(rootID, "")
	f.addGroup(currentID, rootID)
	f.addGroup(targetID, rootID)
	f.addProcessor("proc-a", rootID, nifi.StateRunning)
	f.addProcessor("proc-b", rootID, nifi.StateRunning)

	f.addPort(nifi.TypeInputPort, "in-old", currentID, "X")
	f.addPort(nifi.TypeOutputPort, "out-old", currentID, "Y")
	f.addPort(nifi.TypeInputPort, "in-new", targetID, "X")
	f.addPort(nifi.TypeOutputPort, "out-new", targetID, "Y")

	f.connect("c-in", rootID, processorEnd("proc-a"), portEnd(nifi.TypeInputPort, "in-old", currentID, "X"))
	f.connect("c-out", rootID, portEnd(nifi.TypeOutputPort, "out-old", currentID, "Y"), processorEnd("proc-b"))
	return f
}

func scenarioIDs() IDs {
	return IDs{ParentID: rootID, CurrentID: currentID, TargetID: targetID}
}
