package proctor

var ClassifyScreen = classifyScreen
