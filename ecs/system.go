package ecs

// System represents a behavior that operates on entities with specific
// components. Systems run in registration order each frame and may queue
// structural changes through the frame's Commands.
type System interface {
	Execute(frame *UpdateFrame)
}
