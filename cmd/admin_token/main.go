// Command admin_token prints a service token for calling the API.
package main

import (
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"revattest/internal/config"
	"revattest/internal/models"
	"revattest/internal/utils"
)

func main() {
	subject := flag.String("subject", "operator", "token subject (calling service name)")
	scopes := flag.String("scopes", "", "comma-separated scopes; empty grants all")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	config.LoadEnv()
	secret := config.GetEnv("SERVICE_JWT_SECRET", "")
	if secret == "" {
		log.Fatal("SERVICE_JWT_SECRET must be set in environment")
	}

	granted := models.AllScopes()
	if *scopes != "" {
		granted = strings.Split(*scopes, ",")
	}

	token, err := utils.IssueServiceToken(secret, *subject, granted, *ttl)
	if err != nil {
		log.Fatalf("Failed to issue token: %v", err)
	}
	fmt.Println(token)
}
