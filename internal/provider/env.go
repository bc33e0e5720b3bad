package provider

import "os"

func envOrEmpty(key string) string { return os.Getenv(key) }

// readAWSCredentials reads static AWS credentials from the conventional
// environment variables used to sign requests when ProviderConfig.AWSSigning
// is set.
func readAWSCredentials() (accessKey, secretKey, sessionToken string) {
	return os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY"), os.Getenv("AWS_SESSION_TOKEN")
}
