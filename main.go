package main

import "github.com/frahmantamala/payment-core/cmd"

func main() {
	cmd.Execute()
}
