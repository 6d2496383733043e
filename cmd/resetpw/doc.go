// Command resetpw is an operator tool for account recovery: it resets a
// user's password directly in the database, prompting for the new
// password on the terminal. All of the user's sessions are invalidated.
package main
