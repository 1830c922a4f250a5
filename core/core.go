// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package core contains engine wide configuration and the services
// shared by every surface: frame timing, the initialization pool, and
// loading shader sources from directories and kar bundles.
package core

// Executor runs tasks off the calling goroutine.
type Executor interface {
	Submit(func())
}

// Scheduler runs tasks on the render loop goroutine.
type Scheduler interface {
	Post(func())
}
