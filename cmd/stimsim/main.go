// Command stimsim runs the sonar stimulus against the reference controller
// model and records the waveform.
package main

import "github.com/sarchlab/stimulus/cmd/stimsim/cmd"

func main() {
	cmd.Execute()
}
