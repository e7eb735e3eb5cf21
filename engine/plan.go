package engine

import (
	"fmt"
	"slices"

	"github.com/cwbudde/algo-synth/arrange"
	"github.com/cwbudde/algo-synth/graph"
	"github.com/cwbudde/algo-synth/node"
	"github.com/cwbudde/algo-synth/param"
)

// Instance is the render state of one node: its processors (one per voice
// for per-voice kinds) and parameter smoothers. It is created and prepared
// on the control thread and owned by the render thread once published.
type Instance struct {
	Node graph.NodeID
	Desc *node.Descriptor

	global  node.Processor
	voices  []node.Processor
	smooth  []param.Smoother
	dirty   []bool
	gesture []bool
	faulted bool
}

// NewInstance creates and prepares the processors for n with its current
// parameter values.
func NewInstance(reg *node.Registry, n graph.Node, cfg Config) (*Instance, error) {
	inst := &Instance{
		Node:    n.ID,
		Desc:    n.Desc,
		smooth:  make([]param.Smoother, len(n.Desc.Params)),
		dirty:   make([]bool, len(n.Desc.Params)),
		gesture: make([]bool, len(n.Desc.Params)),
	}
	count := 1
	if n.Desc.Polyphony == node.PerVoice {
		count = cfg.MaxVoices
		inst.voices = make([]node.Processor, count)
	}
	for i := 0; i < count; i++ {
		p, err := reg.Create(n.Type)
		if err != nil {
			return nil, fmt.Errorf("instance %d: %w", n.ID, err)
		}
		p.Prepare(cfg.SampleRate, cfg.MaxBlock)
		for pi, spec := range n.Desc.Params {
			p.SetParam(spec.ID, n.Params[pi])
		}
		if inst.voices != nil {
			inst.voices[i] = p
		} else {
			inst.global = p
		}
	}
	frames := cfg.SmoothingFrames()
	for pi := range inst.smooth {
		inst.smooth[pi] = param.NewSmoother(frames)
		inst.smooth[pi].Reset(n.Params[pi])
	}
	return inst, nil
}

// Processor returns the global processor, or nil for per-voice kinds.
func (inst *Instance) Processor() node.Processor {
	return inst.global
}

// Faulted reports whether the instance was silenced after misbehaving.
func (inst *Instance) Faulted() bool {
	return inst.faulted
}

func (inst *Instance) setParam(i int, v float32) {
	id := inst.Desc.Params[i].ID
	if inst.global != nil {
		inst.global.SetParam(id, v)
		return
	}
	for _, p := range inst.voices {
		p.SetParam(id, v)
	}
}

// InstanceCache keeps node instances alive across recompiles so processor
// state survives unrelated graph edits. Control thread only.
type InstanceCache struct {
	reg *node.Registry
	cfg Config
	m   map[graph.NodeID]*Instance
}

// NewInstanceCache returns an empty cache.
func NewInstanceCache(reg *node.Registry, cfg Config) *InstanceCache {
	return &InstanceCache{reg: reg, cfg: cfg, m: make(map[graph.NodeID]*Instance)}
}

// Get returns the cached instance for n, creating it on first use.
func (c *InstanceCache) Get(n graph.Node) (*Instance, error) {
	if inst, ok := c.m[n.ID]; ok && inst.Desc.Type == n.Type {
		return inst, nil
	}
	inst, err := NewInstance(c.reg, n, c.cfg)
	if err != nil {
		return nil, err
	}
	c.m[n.ID] = inst
	return inst, nil
}

// Forget drops a removed node. Plans still referencing it keep it alive
// until they are reclaimed.
func (c *InstanceCache) Forget(id graph.NodeID) {
	delete(c.m, id)
}

// Len returns the number of cached instances.
func (c *InstanceCache) Len() int {
	return len(c.m)
}

// Route binds a track to the node that receives its notes and regions and
// whose output is the track signal.
type Route struct {
	Track  arrange.TrackID
	Target graph.NodeID
	Armed  bool
}

// Routes extracts the routing of every targeted track, at most max entries.
func Routes(tracks []arrange.Track, max int) []Route {
	var rs []Route
	for _, t := range tracks {
		if t.Target == 0 {
			continue
		}
		if len(rs) == max {
			break
		}
		rs = append(rs, Route{Track: t.ID, Target: t.Target, Armed: t.Armed})
	}
	return rs
}

type routePlan struct {
	track       arrange.TrackID
	step        int
	feedsOutput bool
}

type step struct {
	inst     *Instance
	perVoice bool
	channels int
	// route is the index of the track route targeting this step, or -1.
	route int

	// ports lists source step indices per input port.
	ports [][]int
	// domain[owner] reports whether voices of that owner render here.
	// Owner 0 is live input, owner r+1 is route r.
	domain []bool

	out      node.Buffer
	outView  node.Buffer
	voiceOut []node.Buffer
	voiceOn  []bool
	view     node.Buffer

	in     []node.Buffer
	inView []node.Buffer
	args   []node.Buffer
}

// GraphPlan is the compiled render order with preallocated buffers.
type GraphPlan struct {
	Version uint64

	steps  []step
	index  map[graph.NodeID]int
	output int
	routes []routePlan
}

// Len returns the number of rendered nodes.
func (p *GraphPlan) Len() int {
	return len(p.steps)
}

// Order returns the node ids in render order.
func (p *GraphPlan) Order() []graph.NodeID {
	ids := make([]graph.NodeID, len(p.steps))
	for i := range p.steps {
		ids[i] = p.steps[i].inst.Node
	}
	return ids
}

// Instance returns the instance rendering id.
func (p *GraphPlan) Instance(id graph.NodeID) (*Instance, bool) {
	i, ok := p.index[id]
	if !ok {
		return nil, false
	}
	return p.steps[i].inst, true
}

// CompileGraph builds a plan over the output node and every route target.
// Instances come from cache so unchanged nodes keep their state.
func CompileGraph(g *graph.Graph, routes []Route, cache *InstanceCache, cfg Config) (*GraphPlan, error) {
	output, hasOutput := g.Output()
	roots := make([]graph.NodeID, 0, len(routes)+1)
	if hasOutput {
		roots = append(roots, output)
	}
	var live []graph.NodeID
	if hasOutput {
		live = append(live, output)
	}
	valid := routes[:0:0]
	for _, r := range routes {
		if !g.Has(r.Target) || len(valid) == cfg.MaxTracks {
			continue
		}
		valid = append(valid, r)
		roots = append(roots, r.Target)
		if r.Armed {
			live = append(live, r.Target)
		}
	}

	order := g.RenderOrderFrom(roots...)
	plan := &GraphPlan{
		Version: g.Version(),
		steps:   make([]step, len(order)),
		index:   make(map[graph.NodeID]int, len(order)),
		output:  -1,
	}
	for i, id := range order {
		plan.index[id] = i
	}

	owners := len(valid) + 1
	domains := make([]map[graph.NodeID]bool, owners)
	domains[0] = closure(g, live)
	for r, rt := range valid {
		domains[r+1] = closure(g, []graph.NodeID{rt.Target})
	}

	for i, id := range order {
		n, _ := g.Node(id)
		inst, err := cache.Get(n)
		if err != nil {
			return nil, err
		}
		s := &plan.steps[i]
		s.inst = inst
		s.route = -1
		s.perVoice = n.Desc.Polyphony == node.PerVoice
		s.channels = n.Desc.Channels
		s.out = node.NewBuffer(s.channels, cfg.MaxBlock)
		s.outView = make(node.Buffer, s.channels)
		s.view = make(node.Buffer, s.channels)
		if s.perVoice {
			s.voiceOut = make([]node.Buffer, cfg.MaxVoices)
			for v := range s.voiceOut {
				s.voiceOut[v] = node.NewBuffer(s.channels, cfg.MaxBlock)
			}
			s.voiceOn = make([]bool, cfg.MaxVoices)
		}

		s.ports = make([][]int, len(n.Desc.Inputs))
		for _, c := range g.Inputs(id) {
			pi := n.Desc.InputIndex(c.ToPort)
			src, ok := plan.index[c.From]
			if pi < 0 || !ok {
				continue
			}
			s.ports[pi] = append(s.ports[pi], src)
		}
		for pi := range s.ports {
			slices.Sort(s.ports[pi])
		}
		s.in = make([]node.Buffer, len(s.ports))
		s.inView = make([]node.Buffer, len(s.ports))
		s.args = make([]node.Buffer, len(s.ports))
		for pi := range s.ports {
			s.in[pi] = node.NewBuffer(s.channels, cfg.MaxBlock)
			s.inView[pi] = make(node.Buffer, s.channels)
		}

		s.domain = make([]bool, owners)
		for o := range domains {
			s.domain[o] = domains[o][id]
		}
	}
	if hasOutput {
		plan.output = plan.index[output]
	}

	var outUp map[graph.NodeID]bool
	if hasOutput {
		outUp = closure(g, []graph.NodeID{output})
	}
	for _, rt := range valid {
		si := plan.index[rt.Target]
		if plan.steps[si].route < 0 {
			plan.steps[si].route = len(plan.routes)
		}
		plan.routes = append(plan.routes, routePlan{
			track:       rt.Track,
			step:        si,
			feedsOutput: hasOutput && outUp[rt.Target],
		})
	}
	return plan, nil
}

func closure(g *graph.Graph, roots []graph.NodeID) map[graph.NodeID]bool {
	set := make(map[graph.NodeID]bool)
	for _, id := range g.RenderOrderFrom(roots...) {
		set[id] = true
	}
	return set
}

// TrackPlan is the render view of one track.
type TrackPlan struct {
	ID         arrange.TrackID
	Volume     float32
	Pan        float32
	Audible    bool
	Target     graph.NodeID
	Slots      []arrange.ClipID
	Placements []arrange.Placement
}

// RegionPlan is an audio region with its resolved pool entry.
type RegionPlan struct {
	arrange.AudioRegion
	Entry *arrange.AudioEntry
}

// ClipPlan is the render view of one clip.
type ClipPlan struct {
	ID      arrange.ClipID
	Length  float64
	Looping bool
	Notes   []arrange.Note
	Regions []RegionPlan
}

// LanePlan is one automation lane.
type LanePlan struct {
	Key  param.Key
	Lane param.Lane
}

// ArrangementPlan is the immutable render view of tracks, clips, the
// timeline and automation.
type ArrangementPlan struct {
	Version uint64
	Tracks  []TrackPlan
	Clips   []ClipPlan
	Lanes   []LanePlan

	clipIndex map[arrange.ClipID]int
}

// Clip returns the plan of a clip.
func (p *ArrangementPlan) Clip(id arrange.ClipID) (*ClipPlan, bool) {
	i, ok := p.clipIndex[id]
	if !ok {
		return nil, false
	}
	return &p.Clips[i], true
}

// CompileArrangement copies the arrangement and lanes into an immutable plan.
func CompileArrangement(version uint64, a *arrange.Arrangement, lanes map[param.Key]param.Lane) *ArrangementPlan {
	p := &ArrangementPlan{Version: version, clipIndex: make(map[arrange.ClipID]int)}
	for _, t := range a.Tracks() {
		p.Tracks = append(p.Tracks, TrackPlan{
			ID:         t.ID,
			Volume:     t.Volume,
			Pan:        t.Pan,
			Audible:    a.Audible(t.ID),
			Target:     t.Target,
			Slots:      t.Slots,
			Placements: a.Placements(t.ID),
		})
	}
	for _, id := range a.ClipIDs() {
		c, _ := a.Clip(id)
		cp := ClipPlan{ID: c.ID, Length: c.Length, Looping: c.Looping, Notes: c.Notes}
		for _, r := range c.Regions {
			e, ok := a.Pool().Get(r.Audio)
			if !ok {
				continue
			}
			cp.Regions = append(cp.Regions, RegionPlan{AudioRegion: r, Entry: e})
		}
		p.clipIndex[id] = len(p.Clips)
		p.Clips = append(p.Clips, cp)
	}
	keys := make([]param.Key, 0, len(lanes))
	for k := range lanes {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(x, y param.Key) int {
		if x.Node != y.Node {
			return int(x.Node) - int(y.Node)
		}
		return int(x.Param) - int(y.Param)
	})
	for _, k := range keys {
		p.Lanes = append(p.Lanes, LanePlan{Key: k, Lane: lanes[k].Clone()})
	}
	return p
}
