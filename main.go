package main

import "github.com/ocruz/athlete-performance-tracker-backend-sub001/cmd"

func main() {
	cmd.Execute()
}
