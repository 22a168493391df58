// Package fire contains the domain model of the fire alarm controller.
//
// It defines the per-frame Detection, the derived frame signal, the Episode
// that spans one fire incident, the Phase of the alarm and the actuator
// Command vocabulary. Machine implements the confirmation, alarm and cooldown
// transitions as a function of (state, signal, now) with no I/O, so every
// timing rule is testable with synthetic clocks.
package fire
