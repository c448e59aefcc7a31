package hash

import "testing"

func TestHashAndCheckPassword(t *testing.T) {
	hashed, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword err: %v", err)
	}
	if hashed == "s3cret" {
		t.Fatal("password stored in plain text")
	}
	if !CheckPasswordHash("s3cret", hashed) {
		t.Fatal("correct password rejected")
	}
	if CheckPasswordHash("wrong", hashed) {
		t.Fatal("wrong password accepted")
	}
}
