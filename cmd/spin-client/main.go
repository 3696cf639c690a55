package main

import "caotun-spin-backend/cmd"

func main() {
	cmd.RunClient()
}
