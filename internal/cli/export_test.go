package cli

var NewAuthService = newAuthService
