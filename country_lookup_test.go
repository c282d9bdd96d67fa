package statsig

import (
	"testing"
)

func TestCountryLookup(t *testing.T) {
	testServer := getTestServer(testServerOptions{})
	defer testServer.Close()
	options := &Options{
		API:              testServer.URL,
		IPCountryOptions: IPCountryOptions{EnsureLoaded: true},
	}
	client, err := NewClientWithOptions("secret-key", options)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = client.Shutdown() }()

	userPass := User{UserID: "123", IpAddress: "24.18.183.148"}  // Seattle, WA
	userFail := User{UserID: "123", IpAddress: "115.240.90.163"} // Mumbai, India (IN)
	if !client.CheckGate(userPass, "test_country") {
		t.Error("Expected user to pass test_country")
	}
	if client.CheckGate(userFail, "test_country") {
		t.Error("Expected user to fail test_country")
	}
}

func TestCountryLookupDisabled(t *testing.T) {
	testServer := getTestServer(testServerOptions{})
	defer testServer.Close()
	options := &Options{
		API:              testServer.URL,
		IPCountryOptions: IPCountryOptions{Disabled: true},
	}
	client, err := NewClientWithOptions("secret-key", options)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = client.Shutdown() }()

	userPass := User{UserID: "123", IpAddress: "24.18.183.148"} // Seattle, WA
	if client.CheckGate(userPass, "test_country") {
		t.Error("Expected passing user to fail test_country if country lookup is disabled")
	}
}

func TestCountryLookupLazyLoad(t *testing.T) {
	testServer := getTestServer(testServerOptions{})
	defer testServer.Close()
	options := &Options{
		API:              testServer.URL,
		IPCountryOptions: IPCountryOptions{LazyLoad: true},
	}
	client, err := NewClientWithOptions("secret-key", options)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = client.Shutdown() }()

	userPass := User{UserID: "123", IpAddress: "24.18.183.148"} // Seattle, WA
	waitForCondition(t, func() bool {
		return client.CheckGate(userPass, "test_country")
	})
}
