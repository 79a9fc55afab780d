package correlate

import "github.com/verte-zerg/yiiprof/internal/model"

type stack struct {
	frames []model.StackFrame
}

func (s *stack) push(f model.StackFrame) {
	s.frames = append(s.frames, f)
}

// top returns a pointer into the stack so continuation lines can extend the
// message in place. It is invalidated by the next push.
func (s *stack) top() *model.StackFrame {
	if len(s.frames) == 0 {
		return nil
	}
	return &s.frames[len(s.frames)-1]
}

func (s *stack) pop() model.StackFrame {
	last := len(s.frames) - 1
	f := s.frames[last]
	s.frames[last] = model.StackFrame{}
	s.frames = s.frames[:last]
	return f
}

func (s *stack) len() int {
	return len(s.frames)
}

func (s *stack) reset() {
	clear(s.frames)
	s.frames = s.frames[:0]
}
