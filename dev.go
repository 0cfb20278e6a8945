package sharetoken

import "time"

// DevConfig returns a configuration with a fresh random key for local
// development. Tokens it signs cannot be verified by any other process.
func DevConfig() (Config, error) {
	key, err := GenerateSigningKey(MinKeyLength)
	if err != nil {
		return Config{}, err
	}
	return Config{
		Issuer: DefaultIssuer + ".dev",
		Key:    key,
	}, nil
}

// SampleRecord returns a fixed identity record suitable for demos and tests.
func SampleRecord() IdentityRecord {
	created := time.Date(2024, time.March, 1, 9, 30, 0, 0, time.UTC)
	return IdentityRecord{
		IDNumber:    "X123",
		FullName:    "A. Silva",
		DateOfBirth: "1990-06-15",
		IssuedDate:  "2020-01-10",
		Hash:        "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08",
		IsVerified:  true,
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}
