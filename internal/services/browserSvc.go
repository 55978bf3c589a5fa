package services

import (
	"context"
	"fmt"
	"time"

	"github.com/awcullen/opcua/ua"
	"github.com/jellydator/ttlcache/v3"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/industrial-sec/uaenum/internal/config"
	"github.com/industrial-sec/uaenum/internal/model"
)

// UaBrowser is the slice of the OPC UA client surface the enumerator
// drives. *client.Client satisfies it.
type UaBrowser interface {
	Browse(ctx context.Context, request *ua.BrowseRequest) (*ua.BrowseResponse, error)
	BrowseNext(ctx context.Context, request *ua.BrowseNextRequest) (*ua.BrowseNextResponse, error)
	Read(ctx context.Context, request *ua.ReadRequest) (*ua.ReadResponse, error)
}

// BrowserSvc walks the server address space and builds the node tree.
type BrowserSvc struct {
	ch            UaBrowser
	logger        *logrus.Logger
	namespaceURIs []string
	maxRefs       uint32
	maxDepth      int
	typeNames     *ttlcache.Cache[string, string]

	visited map[string]struct{}
	summary model.Summary
	started time.Time
}

func NewBrowserSvc(ch UaBrowser, namespaceURIs []string, cfg config.Client, logger *logrus.Logger) *BrowserSvc {
	return &BrowserSvc{
		ch:            ch,
		logger:        logger,
		namespaceURIs: namespaceURIs,
		maxRefs:       cfg.MaxReferencesPerNode,
		maxDepth:      cfg.MaxDepth,
		typeNames: ttlcache.New[string, string](
			ttlcache.WithTTL[string, string](time.Duration(cfg.TypeCacheTTL) * time.Second),
		),
		visited: make(map[string]struct{}),
		started: time.Now(),
	}
}

// Summary reports what the walk touched so far.
func (b *BrowserSvc) Summary() model.Summary {
	s := b.summary
	s.Duration = time.Since(b.started).Round(time.Millisecond)
	return s
}

// EnumerateAll browses the standard Objects folder and everything below it.
func (b *BrowserSvc) EnumerateAll(ctx context.Context) ([]*model.Node, error) {
	seed, err := b.describe(ctx, ua.ObjectIDObjectsFolder)
	if err != nil {
		return nil, errors.Wrap(err, "describe Objects folder")
	}
	root := b.walk(ctx, seed, 0, -1)
	if root == nil {
		return nil, errors.New("Objects folder yielded no nodes")
	}
	return []*model.Node{root}, nil
}

// EnumerateObjects lists the children of the Objects folder, each browsed
// down to maxDepth levels. Depth 0 prints only the children themselves.
func (b *BrowserSvc) EnumerateObjects(ctx context.Context, maxDepth int) ([]*model.Node, error) {
	refs, err := b.children(ctx, ua.ObjectIDObjectsFolder)
	if err != nil {
		return nil, errors.Wrap(err, "browse Objects folder")
	}
	nodes := make([]*model.Node, 0, len(refs))
	for _, r := range refs {
		n := b.walk(ctx, seedFromReference(r, b.namespaceURIs), 0, maxDepth)
		if n != nil {
			nodes = append(nodes, n)
		}
	}
	return nodes, nil
}

// ShowObject resolves target as a NodeId string first; when that does not
// name a browsable node it falls back to matching the browse name among the
// Objects folder children.
func (b *BrowserSvc) ShowObject(ctx context.Context, target string) ([]*model.Node, error) {
	seed, err := b.resolve(ctx, target)
	if err != nil {
		return nil, err
	}
	b.logger.Infof("Browsing object: %s | NodeId: %s", seed.browseName, seed.id)
	root := b.walk(ctx, seed, 0, -1)
	if root == nil {
		return nil, errors.Errorf("object %q yielded no nodes", target)
	}
	return []*model.Node{root}, nil
}

type nodeSeed struct {
	id          ua.NodeID
	browseName  string
	displayName string
	class       ua.NodeClass
}

func seedFromReference(r ua.ReferenceDescription, namespaceURIs []string) nodeSeed {
	return nodeSeed{
		id:          ua.ToNodeID(r.NodeID, namespaceURIs),
		browseName:  r.BrowseName.Name,
		displayName: r.DisplayName.Text,
		class:       r.NodeClass,
	}
}

// walk visits one node and recurses into its children. maxDepth < 0 means
// no user limit; the configured hard cap still applies so a cyclic address
// space terminates. Nodes already visited in this run are skipped.
func (b *BrowserSvc) walk(ctx context.Context, seed nodeSeed, depth, maxDepth int) *model.Node {
	if maxDepth >= 0 && depth > maxDepth {
		return nil
	}
	if depth > b.maxDepth {
		b.logger.Warnf("Recursion limit %d reached, not descending", b.maxDepth)
		return nil
	}
	if seed.id == nil {
		b.summary.Errors++
		b.logger.Warnf("Reference to %q targets an unknown namespace, skipping", seed.browseName)
		return nil
	}
	key := nodeIDKey(seed.id)
	if _, ok := b.visited[key]; ok {
		return nil
	}
	b.visited[key] = struct{}{}

	n := &model.Node{
		BrowseName:  seed.browseName,
		DisplayName: seed.displayName,
		NodeID:      key,
		Class:       className(seed.class),
	}
	b.summary.NodesVisited++

	if seed.class == ua.NodeClassVariable {
		b.readVariable(ctx, seed.id, n)
	}

	refs, err := b.children(ctx, seed.id)
	if err != nil {
		b.summary.Errors++
		b.logger.WithError(err).Warnf("Could not browse children of %s", key)
		return n
	}
	for _, r := range orderMethodsFirst(refs) {
		if child := b.walk(ctx, seedFromReference(r, b.namespaceURIs), depth+1, maxDepth); child != nil {
			n.Children = append(n.Children, child)
		}
	}
	return n
}

// children browses the forward hierarchical references of id, draining
// continuation points until the server has no more to give.
func (b *BrowserSvc) children(ctx context.Context, id ua.NodeID) ([]ua.ReferenceDescription, error) {
	req := &ua.BrowseRequest{
		NodesToBrowse: []ua.BrowseDescription{
			{
				NodeID:          id,
				BrowseDirection: ua.BrowseDirectionForward,
				ReferenceTypeID: ua.ReferenceTypeIDHierarchicalReferences,
				IncludeSubtypes: true,
				ResultMask: uint32(ua.BrowseResultMaskBrowseName) |
					uint32(ua.BrowseResultMaskDisplayName) |
					uint32(ua.BrowseResultMaskNodeClass),
			},
		},
		RequestedMaxReferencesPerNode: b.maxRefs,
	}
	res, err := b.ch.Browse(ctx, req)
	if err != nil {
		return nil, err
	}
	result := res.Results[0]
	if result.StatusCode.IsBad() {
		return nil, result.StatusCode
	}
	refs := result.References
	cp := result.ContinuationPoint
	for cp != "" {
		next, err := b.ch.BrowseNext(ctx, &ua.BrowseNextRequest{
			ContinuationPoints: []ua.ByteString{cp},
		})
		if err != nil {
			return refs, err
		}
		r := next.Results[0]
		if r.StatusCode.IsBad() {
			return refs, r.StatusCode
		}
		refs = append(refs, r.References...)
		cp = r.ContinuationPoint
	}
	return refs, nil
}

// describe reads the identity attributes of a node the walk was not led to
// by a reference (the Objects folder root, show-object targets).
func (b *BrowserSvc) describe(ctx context.Context, id ua.NodeID) (nodeSeed, error) {
	req := &ua.ReadRequest{
		NodesToRead: []ua.ReadValueID{
			{NodeID: id, AttributeID: ua.AttributeIDBrowseName},
			{NodeID: id, AttributeID: ua.AttributeIDDisplayName},
			{NodeID: id, AttributeID: ua.AttributeIDNodeClass},
		},
	}
	res, err := b.ch.Read(ctx, req)
	if err != nil {
		return nodeSeed{}, err
	}
	seed := nodeSeed{id: id, class: ua.NodeClassUnspecified}
	if bn, ok := res.Results[0].Value.(ua.QualifiedName); ok {
		seed.browseName = bn.Name
	} else {
		return nodeSeed{}, errors.Errorf("node %s has no browse name", id)
	}
	if dn, ok := res.Results[1].Value.(ua.LocalizedText); ok {
		seed.displayName = dn.Text
	}
	if nc, ok := res.Results[2].Value.(int32); ok {
		seed.class = ua.NodeClass(nc)
	}
	return seed, nil
}

// resolve finds the show-object target, NodeId syntax first, browse name
// among the Objects folder children second.
func (b *BrowserSvc) resolve(ctx context.Context, target string) (nodeSeed, error) {
	if id := ua.ParseNodeID(target); id != nil {
		if seed, err := b.describe(ctx, id); err == nil {
			return seed, nil
		}
		// Parseable but not served; maybe it is a browse name like "Demo".
	}
	refs, err := b.children(ctx, ua.ObjectIDObjectsFolder)
	if err != nil {
		return nodeSeed{}, errors.Wrap(err, "browse Objects folder")
	}
	for _, r := range refs {
		if r.BrowseName.Name == target {
			return seedFromReference(r, b.namespaceURIs), nil
		}
	}
	return nodeSeed{}, errors.Errorf("object %q not found", target)
}

// readVariable fills the variable-only fields: resolved data type name,
// access label and current value.
func (b *BrowserSvc) readVariable(ctx context.Context, id ua.NodeID, n *model.Node) {
	req := &ua.ReadRequest{
		NodesToRead: []ua.ReadValueID{
			{NodeID: id, AttributeID: ua.AttributeIDDataType},
			{NodeID: id, AttributeID: ua.AttributeIDUserAccessLevel},
			{NodeID: id, AttributeID: ua.AttributeIDAccessLevel},
			{NodeID: id, AttributeID: ua.AttributeIDValue},
		},
		TimestampsToReturn: ua.TimestampsToReturnNeither,
	}
	res, err := b.ch.Read(ctx, req)
	if err != nil {
		b.summary.Errors++
		n.DataType = "Unknown"
		n.Access = "Unknown"
		n.ValueError = err.Error()
		b.logger.WithError(err).Warnf("Could not read attributes of %s", n.NodeID)
		return
	}
	b.summary.VariablesRead++

	n.DataType = b.typeName(ctx, res.Results[0])
	n.Access = accessLabel(res.Results[1], res.Results[2])

	value := res.Results[3]
	if value.StatusCode.IsBad() {
		n.ValueError = value.StatusCode.Error()
		b.logger.Warnf("Could not read value of %s: %s", n.NodeID, value.StatusCode)
		return
	}
	n.Value = value.Value
}

// typeName resolves the data-type NodeId to its display name, caching the
// answer. Servers repeat a handful of types across thousands of variables,
// so this saves one round trip per variable.
func (b *BrowserSvc) typeName(ctx context.Context, dv ua.DataValue) string {
	id, ok := dv.Value.(ua.NodeID)
	if !ok || dv.StatusCode.IsBad() {
		return "Unknown"
	}
	key := nodeIDKey(id)
	if item := b.typeNames.Get(key); item != nil {
		return item.Value()
	}
	res, err := b.ch.Read(ctx, &ua.ReadRequest{
		NodesToRead: []ua.ReadValueID{
			{NodeID: id, AttributeID: ua.AttributeIDDisplayName},
		},
	})
	if err != nil {
		return fmt.Sprintf("Unknown type (%s)", err)
	}
	dn, ok := res.Results[0].Value.(ua.LocalizedText)
	if !ok {
		return fmt.Sprintf("Unknown type (%s)", key)
	}
	b.typeNames.Set(key, dn.Text, ttlcache.DefaultTTL)
	return dn.Text
}

// accessLabel derives Writable/Read-only from UserAccessLevel, falling back
// to AccessLevel when the server does not expose the user-specific one.
func accessLabel(userLevel, level ua.DataValue) string {
	for _, dv := range []ua.DataValue{userLevel, level} {
		if dv.StatusCode.IsBad() {
			continue
		}
		if al, ok := dv.Value.(byte); ok {
			if al&ua.AccessLevelsCurrentWrite != 0 {
				return "Writable"
			}
			return "Read-only"
		}
	}
	return "Unknown"
}

func orderMethodsFirst(refs []ua.ReferenceDescription) []ua.ReferenceDescription {
	ordered := make([]ua.ReferenceDescription, 0, len(refs))
	for _, r := range refs {
		if r.NodeClass == ua.NodeClassMethod {
			ordered = append(ordered, r)
		}
	}
	for _, r := range refs {
		if r.NodeClass != ua.NodeClassMethod {
			ordered = append(ordered, r)
		}
	}
	return ordered
}

// nodeIDKey stringifies a NodeId. The ua.NodeID interface itself carries no
// String method; the concrete NodeIDNumeric/NodeIDString/... types do.
func nodeIDKey(id ua.NodeID) string {
	return fmt.Sprintf("%v", id)
}

func className(nc ua.NodeClass) string {
	switch nc {
	case ua.NodeClassObject:
		return "Object"
	case ua.NodeClassVariable:
		return "Variable"
	case ua.NodeClassMethod:
		return "Method"
	case ua.NodeClassObjectType:
		return "ObjectType"
	case ua.NodeClassVariableType:
		return "VariableType"
	case ua.NodeClassReferenceType:
		return "ReferenceType"
	case ua.NodeClassDataType:
		return "DataType"
	case ua.NodeClassView:
		return "View"
	default:
		return "Unspecified"
	}
}
