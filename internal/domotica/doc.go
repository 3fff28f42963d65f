// Package domotica holds the domain model for the Domotica INC console
// bridge: table and product records, navigation states, the comanda
// insertion request/outcome pair, the error taxonomy, and the retry
// policy shared by every DOM-touching operation.
package domotica
