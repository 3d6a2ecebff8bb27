package bms

import "math/rand/v2"

// frame is one open #RANDOM (or #SETRANDOM) region.
type frame struct {
	bound  int
	value  int
	active bool
	// taken is set once a branch of the current #IF chain has matched.
	taken bool
}

// controlFlow tracks nested random regions. A line is processed only when
// every open frame is active.
type controlFlow struct {
	stack      []frame
	selections []int
	count      int
	intn       func(n int) int
	chosen     []int
}

func newControlFlow(selections []int, intn func(n int) int) *controlFlow {
	if intn == nil {
		intn = rand.IntN
	}
	return &controlFlow{selections: selections, intn: intn}
}

// random opens a region with a value in [1, bound], taken from the replay
// selections while they last.
func (c *controlFlow) random(bound int) {
	var v int
	switch {
	case c.count < len(c.selections):
		v = c.selections[c.count]
	case bound <= 1:
		v = 1
	default:
		v = c.intn(bound) + 1
	}
	c.count++
	c.chosen = append(c.chosen, v)
	c.stack = append(c.stack, frame{bound: bound, value: v, active: true})
}

// setRandom opens a region with a fixed value. It does not consume a replay
// selection.
func (c *controlFlow) setRandom(value int) {
	c.stack = append(c.stack, frame{bound: value, value: value, active: true})
}

func (c *controlFlow) ifEquals(v int) {
	if top := c.top(); top != nil {
		top.active = v == top.value
		top.taken = top.active
	}
}

func (c *controlFlow) elseIf(v int) {
	if top := c.top(); top != nil {
		top.active = !top.taken && v == top.value
		top.taken = top.taken || top.active
	}
}

func (c *controlFlow) orElse() {
	if top := c.top(); top != nil {
		top.active = !top.taken
		top.taken = true
	}
}

func (c *controlFlow) endIf() {
	if top := c.top(); top != nil {
		top.active = true
		top.taken = false
	}
}

func (c *controlFlow) endRandom() {
	if len(c.stack) > 0 {
		c.stack = c.stack[:len(c.stack)-1]
	}
}

func (c *controlFlow) visible() bool {
	for i := range c.stack {
		if !c.stack[i].active {
			return false
		}
	}
	return true
}

func (c *controlFlow) top() *frame {
	if len(c.stack) == 0 {
		return nil
	}
	return &c.stack[len(c.stack)-1]
}
