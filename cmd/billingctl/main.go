// Command billingctl runs billing maintenance jobs: migrations, recurring
// invoice generation and number reservation. It is meant for cron and ops.
package main

import "github.com/joho/godotenv"

func main() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()
	Execute()
}
