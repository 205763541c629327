package main

import "github.com/KaramelBytes/csvglance/cmd"

func main() {
	cmd.Execute()
}
