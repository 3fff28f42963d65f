package main

import "domotica-bridge/cmd"

func main() {
	cmd.Execute()
}
