package identity

var VersionFrom = versionFrom
