package main

import "github.com/bryanchriswhite/TaskGroups/cmd/taskgroups/commands"

func main() {
	commands.Execute()
}
