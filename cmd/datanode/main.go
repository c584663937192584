// Command datanode is a single-process CLI for exercising the dataset
// control plane without a real cluster: internal/simctl stands in for the
// machine controller and transport a production deployment would supply.
package main

func main() {
	Execute()
}
