package core

// Key is a keyboard key. Values are GLFW key codes, so a window layer
// can convert with a plain cast.
type Key int

const (
	KeySpace       Key = 32
	Key0           Key = 48
	Key1           Key = 49
	Key2           Key = 50
	Key3           Key = 51
	Key4           Key = 52
	Key5           Key = 53
	KeyA           Key = 65
	KeyD           Key = 68
	KeyE           Key = 69
	KeyF           Key = 70
	KeyO           Key = 79
	KeyP           Key = 80
	KeyQ           Key = 81
	KeyR           Key = 82
	KeyS           Key = 83
	KeyW           Key = 87
	KeyEscape      Key = 256
	KeyEnter       Key = 257
	KeyTab         Key = 258
	KeyRight       Key = 262
	KeyLeft        Key = 263
	KeyDown        Key = 264
	KeyUp          Key = 265
	KeyF1          Key = 290
	KeyLeftShift   Key = 340
	KeyLeftControl Key = 341
	KeyLeftAlt     Key = 342
)

// Inputs collects key state and cursor motion between frames. Window
// callbacks write to it during PollEvents; the render loop reads it on
// the same goroutine.
type Inputs struct {
	pressed      map[Key]bool
	edges        map[Key]bool
	lastX, lastY float64
	seen         bool
	dx, dy       float64
}

func NewInputs() *Inputs {
	return &Inputs{pressed: map[Key]bool{}, edges: map[Key]bool{}}
}

// KeyEvent records a press or release.
func (in *Inputs) KeyEvent(k Key, down bool) {
	if down && !in.pressed[k] {
		in.edges[k] = true
	}
	in.pressed[k] = down
}

// CursorEvent records an absolute cursor position. The first event only
// establishes the origin.
func (in *Inputs) CursorEvent(x, y float64) {
	if in.seen {
		in.dx += x - in.lastX
		in.dy += y - in.lastY
	}
	in.lastX, in.lastY, in.seen = x, y, true
}

// Pressed reports whether k is held down.
func (in *Inputs) Pressed(k Key) bool { return in.pressed[k] }

// JustPressed reports whether k went down since the last call for k.
func (in *Inputs) JustPressed(k Key) bool {
	hit := in.edges[k]
	delete(in.edges, k)
	return hit
}

// MouseDelta is the motion accumulated since the last Sample.
func (in *Inputs) MouseDelta() (dx, dy float32) {
	return float32(in.dx), float32(in.dy)
}

// Sample returns the accumulated motion and clears it.
func (in *Inputs) Sample() (dx, dy float32) {
	dx, dy = in.MouseDelta()
	in.dx, in.dy = 0, 0
	return dx, dy
}
