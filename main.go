package main

import (
	cmd "github.com/dmi-project/dmi-gateway/cmd/gateway"
)

func main() {
	cmd.Execute()
}
