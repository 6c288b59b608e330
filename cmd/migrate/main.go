package main

import (
	"clinic-booking/internal/configs"
	"clinic-booking/internal/database"
	"flag"
	"log"
)

var (
	configPath = flag.String("config", "", "Config file path")
	envPath    = flag.String("env", "", "Optional dotenv file overriding the config file")
	force      = flag.Int("force", -1, "Marks the schema as being at the given version instead of migrating")
)

func main() {
	flag.Parse()
	if *configPath == "" {
		log.Fatal("no config file path was given")
	}
	if err := configs.LoadEnvFile(*envPath); err != nil {
		log.Fatal(err)
	}
	config, err := configs.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	dbConn, err := database.NewConnection(config)
	if err != nil {
		log.Fatal(err)
	}
	defer dbConn.Close()

	if *force >= 0 {
		if err = database.ForceVersion(dbConn, *force); err != nil {
			log.Fatal(err)
		}
		log.Printf("schema forced to version %d\n", *force)
		return
	}
	if err = database.Migrate(dbConn); err != nil {
		log.Fatal(err)
	}
	log.Println("schema is up to date")
}
