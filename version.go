package sessionvault

// Version is the release of the module and the sessionvault command.
const Version = "0.1.0"
