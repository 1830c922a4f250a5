// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package renderer

// Configuration describes the renderer configuration
type Configuration struct {
	// TaskQueueSize is the number of posted tasks that can wait
	// for the loop before Post blocks.
	TaskQueueSize int
}
