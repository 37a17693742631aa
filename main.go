package main

import "github.com/samhoang/myrepo/cmd"

func main() {
	cmd.Execute()
}
