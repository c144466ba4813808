// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/fsmdetect/internal/graph"
	"github.com/AleutianAI/fsmdetect/internal/logutil"
)

// ignoredKinds are AST kinds with no graph meaning; they lower to nothing
// without a warning.
var ignoredKinds = map[string]bool{
	"CompilationUnit":     true,
	"TransparentMember":   true,
	"TypeAlias":           true,
	"StatementBlock":      true,
	"Subroutine":          true,
	"EmptyArgument":       true,
	"Empty":               true,
	"VariableDeclaration": true,
	"ImplicitEvent":       true,
	"Delay":               true,
}

// Lower consumes an elaborated design document and populates g.
//
// The document root must be the elaborator's "$root" compilation unit;
// every member is dispatched by its kind tag. Lowering is single-threaded
// and must complete before any analysis reads the graph.
//
// Outputs:
//   - nil on success; g holds the full design graph.
//   - *SchemaError when a required field is missing from a record that
//     was dispatched on.
//   - ErrInvalidRoot when the document is not elaborator output.
func Lower(ctx context.Context, g *graph.Graph, doc record) (err error) {
	ctx, span := tracer.Start(ctx, "ast.Lower")
	defer span.End()
	defer func() {
		if r := recover(); r != nil {
			se, ok := r.(*SchemaError)
			if !ok {
				panic(r)
			}
			span.RecordError(se)
			span.SetStatus(codes.Error, se.Error())
			err = se
		}
	}()

	if name, _ := optString(doc, "name"); name != "$root" {
		return ErrInvalidRoot
	}
	lw := &lowerer{ctx: ctx, g: g}
	for _, member := range fieldArray(doc, "$root", "members") {
		lw.lower(member, nil)
	}

	span.SetAttributes(
		attribute.Int("nodes", g.NumNodes()),
		attribute.Int("edges", g.NumEdges()),
	)
	recordLowered(ctx, g.NumNodes(), g.NumEdges())
	return nil
}

// lowerer carries the dispatch state: the destination graph and the
// context used for metric recording.
type lowerer struct {
	ctx context.Context
	g   *graph.Graph
}

// lower dispatches one AST record under the given enclosing scope and
// returns the node representing the record's value, or nil for records
// with no value (statements, event controls, ignored kinds).
func (l *lowerer) lower(v any, parent *graph.Node) *graph.Node {
	rec, ok := v.(record)
	if !ok {
		return nil
	}
	kind := kindOf(rec)
	if ignoredKinds[kind] {
		return nil
	}

	switch kind {
	case "ModuleInstance":
		return l.lowerModule(rec, parent)
	case "Port", "Net", "Variable":
		return l.lowerNet(rec, kind, parent)
	case "NamedValue":
		return l.lowerNamedValue(rec)
	case "Assignment":
		return l.lowerAssignment(rec, parent)
	case "ContinuousAssign":
		return l.lowerAssignment(fieldRecord(rec, kind, "assignment"), parent)
	case "Parameter":
		return l.lowerParam(rec, parent)
	case "BinaryOp":
		return l.lowerBinaryOp(rec)
	case "Conversion":
		// connectivity only; resizing is irrelevant here
		if !hasField(rec, "operand") {
			schemaPanic(kind, "operand")
		}
		return l.lower(rec["operand"], nil)
	case "ProceduralBlock", "Block":
		return l.lowerBlock(rec, parent)
	case "Timed":
		return l.lowerTimed(rec, parent)
	case "ExpressionStatement":
		if !hasField(rec, "expr") {
			schemaPanic(kind, "expr")
		}
		return l.lower(rec["expr"], parent)
	case "List":
		for _, stmt := range fieldArray(rec, kind, "list") {
			l.lower(stmt, parent)
		}
		return nil
	case "Conditional":
		return l.lowerConditional(rec, parent)
	case "Case":
		return l.lowerCase(rec, parent)
	case "ConditionalOp":
		return l.lowerTernary(rec)
	case "UnaryOp":
		return l.lowerUnary(rec)
	case "ElementSelect":
		return l.lowerElementSelect(rec)
	case "RangeSelect":
		return l.lowerRangeSelect(rec)
	case "Replication":
		return l.lowerReplication(rec)
	case "Concatenation":
		return l.lowerConcat(rec)
	case "ForLoop", "ForeverLoop":
		// no unrolling: slices are approximated by whole-signal edges, so
		// the body lowered once already captures the connectivity
		return l.lower(rec["body"], parent)
	case "Call":
		return l.lowerCall(rec, parent)
	case "GenerateBlock":
		l.lowerGenerateBlock(rec, parent)
		return nil
	case "GenerateBlockArray":
		l.lowerGenerateBlockArray(rec, parent)
		return nil
	case "Genvar":
		return l.lowerGenvar(rec, parent)
	case "EventList":
		for _, ev := range fieldArray(rec, kind, "events") {
			l.lower(ev, parent)
		}
		return nil
	case "SignalEvent":
		l.lowerSignalEvent(rec, parent)
		return nil
	case "MemberAccess":
		return l.lowerMemberAccess(rec)
	case "IntegerLiteral", "StringLiteral", "UnbasedUnsizedIntegerLiteral":
		return l.lowerLiteral(rec, kind)
	case "RealLiteral":
		return l.lowerRealLiteral(rec)
	case "Gate":
		// the elaborator does not expose gate primitives usefully
		return nil
	default:
		unknownKind(l.ctx)
		logutil.WarnOnce("unknown-kind-"+kind,
			"unable to lower AST node kind", "kind", kind)
		return nil
	}
}

// lowerModule lowers a module instance: the node itself, its definition
// name and parameter table, then every member under it.
func (l *lowerer) lowerModule(rec record, parent *graph.Node) *graph.Node {
	const kind = "ModuleInstance"
	name := fieldString(rec, kind, "name")
	addr := fieldAddr(rec, kind)

	n := l.g.AddNode(addr, name,
		graph.WithKind(graph.KindModule), graph.WithParent(parent))
	defName := symbolName(kind, fieldString(rec, kind, "definition"))
	n.ModuleDef = &graph.ModuleDef{
		Name:   defName,
		Params: make(map[string]*graph.Node),
	}

	for _, member := range fieldArray(rec, kind, "members") {
		l.lower(member, n)
	}
	return n
}

// lowerNet lowers ports, nets, and variables into Variable nodes,
// handling packed-struct typedefs, internal-symbol aliases, and external
// port connections.
func (l *lowerer) lowerNet(rec record, kind string, parent *graph.Node) *graph.Node {
	name := fieldString(rec, kind, "name")
	addr := fieldAddr(rec, kind)
	if !hasField(rec, "type") {
		schemaPanic(kind, "type")
	}

	n := l.g.AddNode(addr, name,
		graph.WithKind(graph.KindVariable), graph.WithParent(parent))

	switch typ := rec["type"].(type) {
	case string:
		n.WireType = typ
		// a '$'-decorated type string names a typedef expansion
		if strings.ContainsRune(typ, '$') && hasPackedStruct(typ) {
			parseStructString(typ, n, l.g)
		}
	case map[string]any:
		if k, _ := optString(typ, "kind"); k == "TypeAlias" {
			if target, ok := optString(typ, "target"); ok && hasPackedStruct(target) {
				parseStructString(target, n, l.g)
			}
		}
	}

	if symbol, ok := optString(rec, "internalSymbol"); ok {
		l.g.AliasNode(symbolAddr(kind, symbol), n)
	}
	if conn, ok := optRecord(rec, "externalConnection"); ok {
		// a non-assignment connection returns a value node; bridge it to
		// the port through a synthetic assignment
		if connected := l.lower(conn, n); connected != nil {
			assign := l.g.AddNode(l.g.FreeID(), "", graph.WithKind(graph.KindAssign))
			l.g.AddEdge(connected, assign, graph.EdgeBlocking)
			l.g.AddEdge(assign, n, graph.EdgeBlocking)
		}
	}

	if kind == "Port" {
		if fieldString(rec, kind, "direction") == "Out" {
			n.Port = graph.PortOutput
		} else {
			n.Port = graph.PortInput
		}
	}
	return n
}

// lowerNamedValue resolves a symbol reference. A reference carrying a
// constant attribute that has no declaration node yet becomes a named
// Constant: this is how enum members survive as first-class named states.
func (l *lowerer) lowerNamedValue(rec record) *graph.Node {
	const kind = "NamedValue"
	symbol := fieldString(rec, kind, "symbol")
	addr := symbolAddr(kind, symbol)

	if constant, ok := optString(rec, "constant"); ok && !l.g.HasNode(addr) {
		n := l.g.AddNode(addr, symbolName(kind, symbol),
			graph.WithKind(graph.KindConstant))
		n.Value = ParseNumLiteral(constant)
		return n
	}
	return l.g.GetNode(addr)
}

// lowerAssignment lowers blocking and non-blocking assignments, including
// member-wise packed-struct assignment.
func (l *lowerer) lowerAssignment(rec record, parent *graph.Node) *graph.Node {
	const kind = "Assignment"
	if !hasField(rec, "left") {
		schemaPanic(kind, "left")
	}
	if !hasField(rec, "right") {
		schemaPanic(kind, "right")
	}
	// synthetic id: the elaborator's address space never reaches the top
	// of the id range, so this cannot collide
	addr := l.g.FreeID()
	left := l.lower(rec["left"], parent)
	right := l.lower(rec["right"], parent)
	if right == nil {
		// a right-hand side with no value node reads from the enclosing
		// scope (external connections dispatch this way)
		right = parent
	}
	if left == nil || right == nil {
		schemaPanic(kind, "left/right")
	}

	if len(right.Members) == 0 {
		l.addAssignNode(rec, parent, addr, left, right)
		return nil
	}
	if len(right.Members) != len(left.Members) {
		schemaPanic(kind, "members")
	}
	for _, name := range sortedMemberNames(left) {
		rightMember, ok := right.Members[name]
		if !ok {
			schemaPanic(kind, "members."+name)
		}
		l.addAssignNode(rec, parent, addr, left.Members[name], rightMember)
	}
	return nil
}

// addAssignNode wires right -> assign -> left. A struct assignment calls
// this once per member pair with the same addr, so all pairs share one
// assignment node.
func (l *lowerer) addAssignNode(rec record, parent *graph.Node, addr uint64, left, right *graph.Node) {
	n := l.g.AddNode(addr, "", graph.WithKind(graph.KindAssign))
	l.g.AddEdge(right, n, graph.EdgeBlocking)
	if right != parent && parent != nil && parent.Kind.Has(graph.KindControl) {
		l.g.AddEdge(parent, n, graph.EdgeControl)
	}
	edgeKind := graph.EdgeBlocking
	if fieldBool(rec, "Assignment", "isNonBlocking") {
		edgeKind = graph.EdgeNonBlocking
	}
	l.g.AddEdge(n, left, edgeKind)
	n.Parent = parent
}

// lowerParam lowers a parameter to a named constant; module port
// parameters are additionally registered on the enclosing module's
// definition for wrapper emission.
func (l *lowerer) lowerParam(rec record, parent *graph.Node) *graph.Node {
	const kind = "Parameter"
	addr := fieldAddr(rec, kind)
	name := fieldString(rec, kind, "name")
	value := fieldString(rec, kind, "value")

	n := l.g.AddNode(addr, name,
		graph.WithKind(graph.KindConstant), graph.WithParent(parent))
	n.Value = ParseNumLiteral(value)

	if fieldBool(rec, kind, "isPort") &&
		parent != nil && parent.Kind.Has(graph.KindModule) && parent.ModuleDef != nil {
		parent.ModuleDef.Params[name] = n
	}
	return n
}

// binaryOps maps elaborator binary operator names onto the ops the FSM
// analyses care about; everything else stays OpIgnore.
var binaryOps = map[string]graph.Op{
	"Add":      graph.OpAdd,
	"Subtract": graph.OpSubtract,
	"Equality": graph.OpEqual,
}

func (l *lowerer) lowerBinaryOp(rec record) *graph.Node {
	const kind = "BinaryOp"
	if !hasField(rec, "left") || !hasField(rec, "right") {
		schemaPanic(kind, "left/right")
	}
	left := l.lower(rec["left"], nil)
	right := l.lower(rec["right"], nil)

	n := l.g.AddNode(l.g.FreeID(), "")
	l.g.AddEdge(left, n, graph.EdgeBlocking)
	l.g.AddEdge(right, n, graph.EdgeBlocking)
	if op, ok := optString(rec, "op"); ok {
		n.Op = binaryOps[op]
	}
	return n
}

var unaryOps = map[string]graph.Op{
	"LogicalNot": graph.OpLogicalNot,
	"BinaryOr":   graph.OpBinaryOr,
	"BinaryAnd":  graph.OpBinaryAnd,
	"BitwiseNot": graph.OpBitwiseNot,
}

func (l *lowerer) lowerUnary(rec record) *graph.Node {
	const kind = "UnaryOp"
	if !hasField(rec, "operand") {
		schemaPanic(kind, "operand")
	}
	operand := l.lower(rec["operand"], nil)
	n := l.g.AddNode(l.g.FreeID(), "")
	n.Op = unaryOps[fieldString(rec, kind, "op")]
	l.g.AddEdge(operand, n, graph.EdgeBlocking)
	return n
}

// lowerBlock lowers a procedural block: a wrapper node for identity, with
// the body lowered under the current parent rather than the wrapper.
func (l *lowerer) lowerBlock(rec record, parent *graph.Node) *graph.Node {
	var addr uint64
	if hasField(rec, "addr") {
		addr = fieldAddr(rec, "Block")
	} else {
		addr = l.g.FreeID()
	}
	n := l.g.AddNode(addr, "", graph.WithParent(parent))
	l.lower(rec["body"], parent)
	return n
}

// lowerTimed processes the timing control (event list) under the current
// parent, then the guarded statement.
func (l *lowerer) lowerTimed(rec record, parent *graph.Node) *graph.Node {
	const kind = "Timed"
	if !hasField(rec, "stmt") {
		schemaPanic(kind, "stmt")
	}
	if timing, ok := optRecord(rec, "timing"); ok {
		l.lower(timing, parent)
	}
	return l.lower(rec["stmt"], parent)
}

// lowerConditional builds the control scaffolding for an if statement:
// the condition feeds a Control node; the true branch lowers under it,
// the false branch under a LogicalNot child reached by a False edge.
func (l *lowerer) lowerConditional(rec record, parent *graph.Node) *graph.Node {
	const kind = "Conditional"
	if !hasField(rec, "cond") {
		schemaPanic(kind, "cond")
	}
	condParent := l.lower(rec["cond"], parent)
	if condParent == nil {
		schemaPanic(kind, "cond")
	}
	condNode := l.g.AddNode(l.g.FreeID(), "",
		graph.WithKind(graph.KindControl), graph.WithParent(parent))
	l.g.AddEdge(condParent, condNode, graph.EdgeBlocking)

	if !hasField(rec, "ifTrue") {
		schemaPanic(kind, "ifTrue")
	}
	l.lower(rec["ifTrue"], condNode)

	if hasField(rec, "ifFalse") {
		negate := l.g.AddNode(l.g.FreeID(), "",
			graph.WithKind(graph.KindControl), graph.WithParent(condNode))
		negate.Op = graph.OpLogicalNot
		l.g.AddEdge(condNode, negate, graph.EdgeFalse)
		l.lower(rec["ifFalse"], negate)
	}

	if parent != nil && parent.Kind.Has(graph.KindControl) {
		l.g.AddEdge(parent, condNode, graph.EdgeControl)
	}
	return condNode
}

// lowerCase builds one Equal-op Control node per case item, fed by the
// item expressions (combined into one expression node) and the case
// subject; the item statements lower under their control node. The
// default item gets a Control node fed only by the subject.
func (l *lowerer) lowerCase(rec record, parent *graph.Node) *graph.Node {
	const kind = "Case"
	if !hasField(rec, "expr") {
		schemaPanic(kind, "expr")
	}
	cond := l.lower(rec["expr"], parent)

	for _, item := range fieldArray(rec, kind, "items") {
		itemRec, ok := item.(record)
		if !ok {
			schemaPanic(kind, "items")
		}
		exprs := fieldArray(itemRec, kind, "expressions")
		var nodes []*graph.Node
		for _, expr := range exprs {
			n := l.lower(expr, parent)
			if n == nil {
				schemaPanic(kind, "expressions")
			}
			nodes = append(nodes, n)
		}
		if len(nodes) == 0 {
			schemaPanic(kind, "expressions")
		}

		exprNode := l.g.AddNode(l.g.FreeID(), "", graph.WithParent(parent))
		for _, n := range nodes {
			l.g.AddEdge(n, exprNode, graph.EdgeBlocking)
		}

		controlNode := l.g.AddNode(l.g.FreeID(), "",
			graph.WithKind(graph.KindControl), graph.WithParent(parent))
		controlNode.Op = graph.OpEqual
		l.g.AddEdge(exprNode, controlNode, graph.EdgeBlocking)
		l.g.AddEdge(cond, controlNode, graph.EdgeBlocking)

		if !hasField(itemRec, "stmt") {
			schemaPanic(kind, "stmt")
		}
		l.lower(itemRec["stmt"], controlNode)
	}

	if hasField(rec, "defaultCase") {
		controlNode := l.g.AddNode(l.g.FreeID(), "",
			graph.WithKind(graph.KindControl), graph.WithParent(parent))
		l.g.AddEdge(cond, controlNode, graph.EdgeBlocking)
		l.lower(rec["defaultCase"], controlNode)
	}

	if parent != nil && parent.Kind.Has(graph.KindControl) {
		l.g.AddEdge(parent, cond, graph.EdgeControl)
	}
	return cond
}

// lowerTernary builds a Control node for the predicate and a
// Control|Assign node with OpTernary receiving both arms. The arc
// extractor deliberately does not treat OpTernary as a transition site.
func (l *lowerer) lowerTernary(rec record) *graph.Node {
	const kind = "ConditionalOp"
	if !hasField(rec, "pred") {
		schemaPanic(kind, "pred")
	}
	if !hasField(rec, "left") || !hasField(rec, "right") {
		schemaPanic(kind, "left/right")
	}
	pred := l.lower(rec["pred"], nil)
	left := l.lower(rec["left"], nil)
	right := l.lower(rec["right"], nil)

	ctrl := l.g.AddNode(l.g.FreeID(), "", graph.WithKind(graph.KindControl))
	l.g.AddEdge(pred, ctrl, graph.EdgeBlocking)

	sel := l.g.AddNode(l.g.FreeID(), "",
		graph.WithKind(graph.KindControl|graph.KindAssign))
	sel.Op = graph.OpTernary
	l.g.AddEdge(ctrl, sel, graph.EdgeBlocking)
	l.g.AddEdge(left, sel, graph.EdgeBlocking)
	l.g.AddEdge(right, sel, graph.EdgeBlocking)
	return sel
}

func (l *lowerer) lowerElementSelect(rec record) *graph.Node {
	const kind = "ElementSelect"
	value := l.lower(rec["value"], nil)
	if value == nil {
		schemaPanic(kind, "value")
	}
	selector := l.lower(rec["selector"], nil)
	if selector == nil {
		schemaPanic(kind, "selector")
	}
	l.g.AddEdge(selector, value, graph.EdgeSlice)
	return value
}

func (l *lowerer) lowerRangeSelect(rec record) *graph.Node {
	const kind = "RangeSelect"
	value := l.lower(rec["value"], nil)
	if value == nil {
		schemaPanic(kind, "value")
	}
	left := l.lower(rec["left"], nil)
	right := l.lower(rec["right"], nil)
	if left != nil {
		l.g.AddEdge(left, value, graph.EdgeSlice)
	}
	if right != nil {
		l.g.AddEdge(right, value, graph.EdgeSlice)
	}
	return value
}

// lowerReplication returns the replicated subject; the width is not
// tracked, so the replication itself is transparent.
func (l *lowerer) lowerReplication(rec record) *graph.Node {
	const kind = "Replication"
	if !hasField(rec, "count") {
		schemaPanic(kind, "count")
	}
	if !hasField(rec, "concat") {
		schemaPanic(kind, "concat")
	}
	subject := l.lower(rec["concat"], nil)
	if subject != nil && subject.Kind.Has(graph.KindConstant) {
		logutil.WarnOnce("constant-replication", "constant replication not supported")
	}
	return subject
}

func (l *lowerer) lowerConcat(rec record) *graph.Node {
	const kind = "Concatenation"
	n := l.g.AddNode(l.g.FreeID(), "")
	for _, operand := range fieldArray(rec, kind, "operands") {
		opNode := l.lower(operand, nil)
		if opNode == nil {
			schemaPanic(kind, "operands")
		}
		l.g.AddEdge(opNode, n, graph.EdgeBlocking)
	}
	return n
}

// lowerCall wires call arguments into a synthetic call node. System tasks
// are expected; custom tasks/functions are not inlined and warn once per
// subroutine name.
func (l *lowerer) lowerCall(rec record, parent *graph.Node) *graph.Node {
	const kind = "Call"
	subroutine := fieldString(rec, kind, "subroutine")
	if !isSystemTask(subroutine) {
		fields := strings.Fields(subroutine)
		name := fields[len(fields)-1]
		logutil.WarnOnce("custom-task-"+name,
			"custom task/function not supported", "name", name)
	}

	callNode := l.g.GetNode(l.g.FreeID())
	callNode.Parent = parent

	if args, ok := rec["arguments"].([]any); ok {
		for _, arg := range args {
			if argNode := l.lower(arg, callNode); argNode != nil {
				l.g.AddEdge(argNode, callNode, graph.EdgeBlocking)
			}
		}
	}
	return callNode
}

// isSystemTask reports whether a subroutine reference names a $-builtin.
func isSystemTask(subroutine string) bool {
	fields := strings.Fields(subroutine)
	return len(fields) == 1 && strings.HasPrefix(fields[0], "$")
}

func (l *lowerer) lowerGenerateBlock(rec record, parent *graph.Node) {
	const kind = "GenerateBlock"
	if !fieldBool(rec, kind, "isInstantiated") {
		return
	}
	for _, member := range fieldArray(rec, kind, "members") {
		l.lower(member, parent)
	}
}

// lowerGenerateBlockArray instantiates one synthetic module per generate
// block, named "label[i]" where i is recovered from the block's loop
// parameter. Blocks whose index cannot be recovered are skipped with a
// warning; synthesising an index would fabricate hierarchy.
func (l *lowerer) lowerGenerateBlockArray(rec record, parent *graph.Node) {
	const kind = "GenerateBlockArray"
	name := fieldString(rec, kind, "name")
	members := fieldArray(rec, kind, "members")
	if name == "" {
		logutil.WarnOnce("genblock-array-"+parent.HandleName(),
			"unable to find label name for generated block array",
			"parent", parent.HandleName())
		return
	}

	for _, member := range members {
		memberRec, ok := member.(record)
		if !ok || kindOf(memberRec) != "GenerateBlock" {
			schemaPanic(kind, "members")
		}
		index, found := l.generateBlockIndex(memberRec, parent)
		if !found {
			logutil.WarnOnce("genblock-index-"+parent.HandleName()+"."+name,
				"unable to recover generate block index",
				"parent", parent.HandleName(), "label", name)
			continue
		}
		moduleName := fmt.Sprintf("%s[%d]", name, index)
		module := l.g.AddNode(l.g.FreeID(), moduleName,
			graph.WithKind(graph.KindModule), graph.WithParent(parent))
		l.lowerGenerateBlock(memberRec, module)
	}
}

// generateBlockIndex scans a generate block for the parameter that
// shadows the enclosing scope's genvar and returns its elaborated value.
func (l *lowerer) generateBlockIndex(blockRec record, parent *graph.Node) (int64, bool) {
	for _, member := range fieldArray(blockRec, "GenerateBlock", "members") {
		memberRec, ok := member.(record)
		if !ok || kindOf(memberRec) != "Parameter" {
			continue
		}
		name, ok := optString(memberRec, "name")
		if !ok {
			continue
		}
		if _, isGenvar := parent.Members[name]; !isGenvar {
			continue
		}
		param := l.lowerParam(memberRec, nil)
		return param.Value, true
	}
	return 0, false
}

func (l *lowerer) lowerGenvar(rec record, parent *graph.Node) *graph.Node {
	const kind = "Genvar"
	name := fieldString(rec, kind, "name")
	n := l.g.AddNode(l.g.FreeID(), name)
	parent.AddMember(name, n)
	return n
}

// lowerSignalEvent records the edge sensitivity on the referenced signal.
func (l *lowerer) lowerSignalEvent(rec record, parent *graph.Node) {
	const kind = "SignalEvent"
	if !hasField(rec, "expr") {
		schemaPanic(kind, "expr")
	}
	expr := l.lower(rec["expr"], parent)
	if expr == nil {
		schemaPanic(kind, "expr")
	}
	switch edge := fieldString(rec, kind, "edge"); edge {
	case "PosEdge":
		expr.Event = graph.EventPosedge
	case "NegEdge":
		expr.Event = graph.EventNegedge
	case "None":
		expr.Event = graph.EventNone
	default:
		schemaPanic(kind, "edge")
	}
}

// lowerMemberAccess resolves a packed-struct field reference to its
// member node.
func (l *lowerer) lowerMemberAccess(rec record) *graph.Node {
	const kind = "MemberAccess"
	field := symbolName(kind, fieldString(rec, kind, "field"))
	value := l.lower(rec["value"], nil)
	if value == nil {
		schemaPanic(kind, "value")
	}
	member, ok := value.Members[field]
	if !ok {
		schemaPanic(kind, "members."+field)
	}
	return member
}

// lowerLiteral lowers integer and string literals to anonymous constants.
// The elaborator stores the value under "constant", "value", or (for
// string literals) "literal" depending on context.
func (l *lowerer) lowerLiteral(rec record, kind string) *graph.Node {
	var value int64
	if s, ok := optString(rec, "constant"); ok {
		value = ParseNumLiteral(s)
	} else if s, ok := optString(rec, "value"); ok {
		value = ParseNumLiteral(s)
	} else if s, ok := optString(rec, "literal"); ok {
		value = parseStringLiteral(s)
	} else {
		schemaPanic(kind, "constant")
	}
	n := l.g.AddNode(l.g.FreeID(), "", graph.WithKind(graph.KindConstant))
	n.Value = value
	return n
}

func (l *lowerer) lowerRealLiteral(rec record) *graph.Node {
	const kind = "RealLiteral"
	if typ := fieldString(rec, kind, "type"); typ != "real" {
		schemaPanic(kind, "type")
	}
	constant := fieldString(rec, kind, "constant")
	var real float64
	if _, err := fmt.Sscanf(constant, "%g", &real); err != nil {
		logutil.WarnOnce("real-literal-"+constant,
			"unable to parse real literal", "literal", constant)
	}
	n := l.g.AddNode(l.g.FreeID(), "", graph.WithKind(graph.KindConstant))
	n.Value = int64(real)
	return n
}

// sortedMemberNames returns the node's member names in lexical order, for
// deterministic member-wise struct assignment.
func sortedMemberNames(n *graph.Node) []string {
	names := make([]string, 0, len(n.Members))
	for name := range n.Members {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
