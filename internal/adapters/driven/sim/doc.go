// Package sim provides scripted stand-ins for the capture, speech-to-text
// and AI collaborators. A Scenario describes a meeting; the simulators
// replay it through the real engine with real goroutines and timers, and
// deliver every callback asynchronously as the driven ports require.
package sim
