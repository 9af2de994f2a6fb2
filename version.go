package steamcmd

// Version is the current version of the go-steamcmd library
const Version = "1.0.0"
