// Command holistic runs the pose, face and hand perception pipeline over a
// camera or video file and serves the results.
package main

func main() {
	Execute()
}
