package main

import (
	_ "time/tzdata" // IANA zones for scratch/alpine images

	"telegram-fitness-bot/internal/cli"
	"telegram-fitness-bot/internal/utils"
)

func main() {
	utils.Must(cli.Execute())
}
